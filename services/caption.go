package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"telegram-library/configs"
)

// MaxCaptionLength is the Telegram limit for media captions, in characters.
const MaxCaptionLength = 1024

var (
	handlePattern = regexp.MustCompile(`@([\p{L}\p{N}_]+)`)
	promoPattern  = regexp.MustCompile(`(?i)join\s+for\s+more|extracted\s+by|uploaded\s+by|provided\s+by|credits?|promo|channel|t\.me/`)
	unsafeChars   = regexp.MustCompile(`[^\p{L}\p{N}_\s\-:.()&]`)
)

// Sanitizer rewrites untrusted captions into a display title and body. It
// drops lines that advertise foreign handles or promotional text.
type Sanitizer struct {
	allowed map[string]struct{}
	footer  string
}

func NewSanitizer(b configs.Branding) *Sanitizer {
	allowed := make(map[string]struct{})
	for _, h := range append([]string{b.CreatorHandle, b.UpdatesHandle, b.CommunityHandle}, b.AllowedHandles...) {
		h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
		if h != "" {
			allowed[h] = struct{}{}
		}
	}
	return &Sanitizer{allowed: allowed, footer: buildFooter(b)}
}

func buildFooter(b configs.Branding) string {
	var lines []string
	if b.Name != "" {
		lines = append(lines, "Downloaded via "+b.Name)
	}
	if b.CreatorHandle != "" {
		lines = append(lines, "Creator: "+b.CreatorHandle)
	}
	var channels []string
	if b.UpdatesHandle != "" {
		channels = append(channels, "Updates: "+b.UpdatesHandle)
	}
	if b.CommunityHandle != "" {
		channels = append(channels, "Community: "+b.CommunityHandle)
	}
	if len(channels) > 0 {
		lines = append(lines, strings.Join(channels, " | "))
	}
	return strings.Join(lines, "\n")
}

func (s *Sanitizer) Footer() string { return s.footer }

// Sanitize returns the cleaned title, followed by a body when more lines
// survive. It returns fallback when nothing survives.
func (s *Sanitizer) Sanitize(raw, fallback string) string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if s.hasForeignHandle(line) || promoPattern.MatchString(line) {
			continue
		}
		line = strings.Join(strings.Fields(unsafeChars.ReplaceAllString(line, "")), " ")
		if utf8.RuneCountInString(line) < 3 {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return fallback
	}

	var body []string
	for _, line := range kept[1:] {
		if utf8.RuneCountInString(line) > 4 {
			body = append(body, line)
		}
	}
	if len(body) == 0 {
		return kept[0]
	}
	return kept[0] + "\n" + strings.Join(body, "\n")
}

func (s *Sanitizer) hasForeignHandle(line string) bool {
	for _, m := range handlePattern.FindAllStringSubmatch(line, -1) {
		if _, ok := s.allowed[strings.ToLower(m[1])]; !ok {
			return true
		}
	}
	return false
}

// Caption is the stored caption: the sanitized text plus the attribution
// footer, kept within MaxCaptionLength. The body gives way before the footer.
func (s *Sanitizer) Caption(raw, fallback string) string {
	text := s.Sanitize(raw, fallback)
	if s.footer == "" {
		return truncateRunes(text, MaxCaptionLength)
	}
	room := MaxCaptionLength - utf8.RuneCountInString(s.footer) - 2
	if room <= 0 {
		return truncateRunes(s.footer, MaxCaptionLength)
	}
	text = strings.TrimSpace(truncateRunes(text, room))
	return text + "\n\n" + s.footer
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
