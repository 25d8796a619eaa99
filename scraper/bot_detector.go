package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BotDetector recognises bot walls and CAPTCHA interstitials in rendered markup
type BotDetector struct {
	botPatterns     []*regexp.Regexp
	captchaPatterns []*regexp.Regexp
	blockPatterns   []*regexp.Regexp
}

// BotCheck is the outcome of inspecting one page
type BotCheck struct {
	IsBotWall bool
	Kind      string // "captcha", "http_error", "bot_wall" or ""
	Reason    string
	Score     float64
}

// NewBotDetector creates a new bot detector
func NewBotDetector() *BotDetector {
	return &BotDetector{
		botPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)to discuss automated access`),
			regexp.MustCompile(`(?i)access denied`),
			regexp.MustCompile(`(?i)are you a human`),
			regexp.MustCompile(`(?i)bot detected`),
			regexp.MustCompile(`(?i)please verify you are human`),
			regexp.MustCompile(`(?i)unusual traffic`),
			regexp.MustCompile(`(?i)too many requests`),
			regexp.MustCompile(`(?i)checking your browser`),
			regexp.MustCompile(`(?i)sorry, we just need to make sure you're not a robot`),
		},
		captchaPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)enter the characters you see below`),
			regexp.MustCompile(`(?i)type the characters you see`),
			regexp.MustCompile(`(?i)recaptcha`),
			regexp.MustCompile(`(?i)hcaptcha`),
			regexp.MustCompile(`(?i)\bcaptcha\b`),
		},
		blockPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)403 forbidden`),
			regexp.MustCompile(`(?i)429 too many requests`),
			regexp.MustCompile(`(?i)503 service unavailable`),
			regexp.MustCompile(`(?i)site temporarily unavailable`),
		},
	}
}

// Inspect checks the visible text and title of the markup. Scripts and styles
// are ignored since vendor names in them say nothing about the page.
func (bd *BotDetector) Inspect(markup string) BotCheck {
	title, text := visibleText(markup)
	content := strings.ToLower(title + " " + text)

	score := 0.0
	var reasons []string
	kind := ""

	for _, pattern := range bd.captchaPatterns {
		if pattern.MatchString(content) {
			score += 0.5
			reasons = append(reasons, "CAPTCHA detected: "+pattern.String())
			kind = "captcha"
		}
	}

	for _, pattern := range bd.blockPatterns {
		if pattern.MatchString(content) {
			score += 0.4
			reasons = append(reasons, "HTTP error: "+pattern.String())
			if kind == "" {
				kind = "http_error"
			}
		}
	}

	for _, pattern := range bd.botPatterns {
		if pattern.MatchString(content) {
			score += 0.3
			reasons = append(reasons, pattern.String())
		}
	}

	if len(content) < 1000 && score > 0 {
		score += 0.2
		reasons = append(reasons, "Very short content with bot indicators")
	}

	if score > 1.0 {
		score = 1.0
	}

	check := BotCheck{
		IsBotWall: score > 0.3,
		Reason:    strings.Join(reasons, "; "),
		Score:     score,
	}
	if check.IsBotWall {
		check.Kind = kind
		if check.Kind == "" {
			check.Kind = "bot_wall"
		}
	}
	return check
}

func visibleText(markup string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", markup
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(doc.Find("title").First().Text()), strings.TrimSpace(doc.Find("body").Text())
}
