package check

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Evaluate classifies result against mode and value. It never panics; an
// invalid regular expression simply does not match.
func Evaluate(result Result, mode MatchMode, value string) bool {
	switch mode {
	case MatchStatusCode:
		return strconv.Itoa(result.StatusCode) == value
	case MatchContains:
		return strings.Contains(result.Output, value)
	case MatchEquals:
		return result.Output == value
	case MatchSuccess:
		return result.Succeeded
	case MatchRegex:
		return matchRegex(result.Output, value)
	}
	return false
}

type regexEntry struct {
	re  *regexp.Regexp
	err error
}

// patterns caches compiled regular expressions, including failed compiles.
var patterns sync.Map

func matchRegex(output, pattern string) bool {
	cached, ok := patterns.Load(pattern)
	if !ok {
		re, err := regexp.Compile(pattern)
		cached, _ = patterns.LoadOrStore(pattern, regexEntry{re: re, err: err})
	}

	entry := cached.(regexEntry)
	if entry.err != nil {
		return false
	}
	return entry.re.MatchString(output)
}
