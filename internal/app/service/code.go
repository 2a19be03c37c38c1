package service

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/url"
	"regexp"
	"strings"
)

// CodeAlphabet is the set of characters short codes are drawn from.
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratedCodeLength is the length of codes the allocator invents.
const GeneratedCodeLength = 7

var codeRe = regexp.MustCompile(`^[A-Za-z0-9]{6,8}$`)

var errBadTarget = errors.New("target must be an absolute http(s) URL with a host")

// ValidCode reports whether code is 6-8 ASCII alphanumerics.
func ValidCode(code string) bool {
	return codeRe.MatchString(code)
}

// NormalizeTarget defaults the scheme to https and checks that the result
// is an absolute URL with a host.
func NormalizeTarget(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" || strings.ContainsAny(target, " \t\r\n") {
		return "", errBadTarget
	}

	lower := strings.ToLower(target)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		target = "https://" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() || u.Hostname() == "" {
		return "", errBadTarget
	}

	return target, nil
}

// CodeGenerator invents candidate short codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator draws each character uniformly from CodeAlphabet
// using crypto/rand.
type RandomCodeGenerator struct {
	Length int
}

func (g RandomCodeGenerator) Generate() (string, error) {
	n := g.Length
	if n == 0 {
		n = GeneratedCodeLength
	}

	max := big.NewInt(int64(len(CodeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = CodeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
