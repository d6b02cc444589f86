package tokenize

import (
	"regexp"
)

// Rule defines a built-in variable pattern. Regex must expose three
// capturing groups: prefix, variable and suffix.
type Rule struct {
	Name        string
	Regex       *regexp.Regexp
	Description string
}

// Built-in variable rules, tried in order. The lazy prefix makes every
// rule match the first occurrence of its variable form.
var (
	// 2023-02-02 22:25:01.123, 02-02-2023 22:25:01
	longDateTimeRegex = regexp.MustCompile(`(?s)^(.*?)(\d{2,4}-\d{2}-\d{2,4} \d{2}:\d{2}:\d{2}[.,]?\d*)(.*?)$`)

	// 04-Dec-22 05:24:22
	shortDateTimeRegex = regexp.MustCompile(`(?s)^(.*?)(\d{2}-\w{3}-\d{2}\s\d{2}:\d{2}:\d{2})(.*?)$`)

	// 14.123.02.86.7
	dotted5Regex = regexp.MustCompile(`(?s)^(.*?)(\d+\.\d+\.\d+\.\d+\.\d+)(.*?)$`)

	// 141.101.238.127
	dotted4Regex = regexp.MustCompile(`(?s)^(.*?)(\d+\.\d+\.\d+\.\d+)(.*?)$`)

	// deviceToke=cLZ5miNHQfmsMtlPRQvLIP:APA91bF3mKk1Ow-StR3wOuJTmTj
	deviceTokenRegex = regexp.MustCompile(`(?s)^(.*?deviceToke=)([A-z0-9:-]+)(.*?)$`)

	// -25.897, -12
	signedDecimalRegex = regexp.MustCompile(`(?s)^(.*?)(-\d+\.?\d+)(.*?)$`)

	// 25.897
	decimalRegex = regexp.MustCompile(`(?s)^(.*?)(\d+\.\d+)(.*?)$`)

	// On-Duty, Off-duty
	dutyStatusRegex = regexp.MustCompile(`(?s)^(.*?)(O\w{1,2}-[Dd]uty)(.*?)$`)
)

// BuiltInRules contains the variable rules in priority order.
var BuiltInRules = []Rule{
	{Name: "long_datetime", Regex: longDateTimeRegex, Description: "Date-time stamps with numeric month"},
	{Name: "short_datetime", Regex: shortDateTimeRegex, Description: "Date-time stamps with three-letter month"},
	{Name: "dotted5", Regex: dotted5Regex, Description: "Five-component dotted numbers"},
	{Name: "dotted4", Regex: dotted4Regex, Description: "Four-component dotted numbers (IPv4-like)"},
	{Name: "device_token", Regex: deviceTokenRegex, Description: "deviceToke= identifiers"},
	{Name: "signed_decimal", Regex: signedDecimalRegex, Description: "Negative numbers"},
	{Name: "decimal", Regex: decimalRegex, Description: "Decimal numbers"},
	{Name: "duty_status", Regex: dutyStatusRegex, Description: "On-Duty / Off-Duty status phrases"},
}

// wordRegex splits text into alternating runs of word and non-word characters.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_]+`)
