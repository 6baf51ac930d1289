package universe

import (
	"regexp"
	"strings"

	"github.com/kosquant/krxagent/pkg/utils"
)

// Name patterns for listing vehicles that are not common equity.
var (
	spacPattern = regexp.MustCompile(`스팩(\d+호)?$|제\d+호스팩`)
	reitPattern = regexp.MustCompile(`리츠$`)
	// Preferred share names: trailing 우 / 우B / 우C / (전환).
	prefPattern = regexp.MustCompile(`우(B|C)?$|\(전환\)$`)
)

// IsCommonShare reports whether the listing is ordinary common stock,
// filtering out SPACs, REITs, and preferred shares. Common-stock codes end
// in 0; preferred lines use a nonzero final digit.
func IsCommonShare(name, code string) bool {
	name = strings.TrimSpace(name)
	if spacPattern.MatchString(name) || reitPattern.MatchString(name) {
		return false
	}
	if prefPattern.MatchString(name) {
		return false
	}

	bare := utils.CodeOf(code)
	if len(bare) == 6 && bare[5] != '0' {
		return false
	}
	return true
}
