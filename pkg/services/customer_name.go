package services

import (
	"regexp"
	"strings"
)

// addressKeywords are the tokens that make parenthesized text count as an
// address. A bare "(본점)" stays part of the name; "(강서구 화곡동)" splits off.
var addressKeywords = []string{
	"시", "구", "동", "로", "길", "번지", "호", "층", "빌딩", "빌라", "아파트",
}

// bracketPattern matches both ASCII and full-width parentheses.
var bracketPattern = regexp.MustCompile(`[\(（]([^\)）]+)[\)）]`)

// cityDistrictPatterns catch bare "서울시 강남구 역삼동" style addresses
// embedded without parentheses. Most specific first.
var cityDistrictPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([가-힣]+시\s*[가-힣]+구\s*[가-힣]+동)`),
	regexp.MustCompile(`([가-힣]+시\s*[가-힣]+구)`),
}

// SplitCustomerName separates an embedded address from a raw customer name.
// "미라클신경과의원(강서구 화곡동)" becomes ("미라클신경과의원", "강서구 화곡동");
// a name without an address comes back trimmed with an empty address.
func SplitCustomerName(raw string) (name, address string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	if m := bracketPattern.FindStringSubmatch(raw); m != nil {
		content := strings.TrimSpace(m[1])
		if containsAddressKeyword(content) {
			clean := strings.TrimSpace(bracketPattern.ReplaceAllString(raw, ""))
			return clean, content
		}
	}

	for _, pattern := range cityDistrictPatterns {
		if m := pattern.FindStringSubmatch(raw); m != nil {
			address := strings.TrimSpace(m[1])
			clean := strings.TrimSpace(pattern.ReplaceAllString(raw, ""))
			if clean == "" {
				// The whole string was an address; keep it as the name
				// rather than produce a nameless customer.
				return raw, ""
			}
			return clean, address
		}
	}

	return raw, ""
}

func containsAddressKeyword(s string) bool {
	for _, kw := range addressKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
