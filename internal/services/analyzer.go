package services

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/models"
)

const (
	IndicatorSuspiciousKeyword = "suspicious_keyword"
	IndicatorShortenedURL      = "shortened_url"
	IndicatorExternalSender    = "external_sender"
	IndicatorUrgencyPressure   = "urgency_pressure"

	analyzerName = "system"
)

var (
	suspiciousKeywords = []string{
		"urgent", "immediate action", "verify account", "suspended",
		"click here", "limited time", "act now", "congratulations",
		"winner", "prize", "free money", "inheritance", "lottery",
		"tax refund", "irs",
	}
	shortenerHosts  = []string{"bit.ly", "tinyurl.com", "t.co"}
	freeMailDomains = []string{"gmail.com", "yahoo.com", "hotmail.com"}
	urgencyPhrases  = []string{"within 24 hours", "expires today"}
	urlPattern      = regexp.MustCompile(`(?i)https?://\S+`)

	severityWeights = map[models.Severity]int{
		models.SeverityLow:      1,
		models.SeverityMedium:   2,
		models.SeverityHigh:     3,
		models.SeverityCritical: 4,
	}
	maxSeverityWeight = severityWeights[models.SeverityCritical]
)

// Scorer produces the analysis written onto a report at submission.
type Scorer interface {
	Evaluate(subject, content, senderEmail string, now time.Time) models.AnalysisResults
}

// Analyzer is the heuristic scorer run once per report at submission. It is
// pure and safe for concurrent use.
type Analyzer struct {
	institutionDomain string
}

func NewAnalyzer(institutionDomain string) *Analyzer {
	return &Analyzer{institutionDomain: strings.ToLower(strings.TrimSpace(institutionDomain))}
}

// Analyze returns indicators in a fixed order: keywords in list order, then
// shortened URLs in body order, then the sender check, then urgency.
func (a *Analyzer) Analyze(subject, content, senderEmail string) []models.Indicator {
	indicators := []models.Indicator{}
	lowerSubject := strings.ToLower(subject)
	lowerContent := strings.ToLower(content)

	// One indicator per keyword even if both fields contain it.
	for _, keyword := range suspiciousKeywords {
		if strings.Contains(lowerContent, keyword) || strings.Contains(lowerSubject, keyword) {
			indicators = append(indicators, models.Indicator{
				Type:        IndicatorSuspiciousKeyword,
				Description: fmt.Sprintf("Contains suspicious keyword: %q", keyword),
				Severity:    models.SeverityMedium,
			})
		}
	}

	for _, raw := range urlPattern.FindAllString(content, -1) {
		if isShortenedURL(raw) {
			indicators = append(indicators, models.Indicator{
				Type:        IndicatorShortenedURL,
				Description: "Contains shortened URL which may hide the real destination",
				Severity:    models.SeverityMedium,
			})
		}
	}

	if domain := senderDomain(senderEmail); domain != "" && !a.isInstitutional(domain) && contains(freeMailDomains, domain) {
		indicators = append(indicators, models.Indicator{
			Type:        IndicatorExternalSender,
			Description: "Email from external domain requesting sensitive information",
			Severity:    models.SeverityLow,
		})
	}

	for _, phrase := range urgencyPhrases {
		if strings.Contains(lowerContent, phrase) {
			indicators = append(indicators, models.Indicator{
				Type:        IndicatorUrgencyPressure,
				Description: "Creates false sense of urgency",
				Severity:    models.SeverityHigh,
			})
			break
		}
	}

	return indicators
}

// Evaluate runs Analyze and packages the score and verdict for storage.
func (a *Analyzer) Evaluate(subject, content, senderEmail string, now time.Time) models.AnalysisResults {
	indicators := a.Analyze(subject, content, senderEmail)
	score := RiskScore(indicators)
	verdict, _ := Classify(score)
	return models.AnalysisResults{
		RiskScore:  score,
		Indicators: indicators,
		Verdict:    verdict,
		AnalyzedBy: analyzerName,
		AnalyzedAt: now,
	}
}

// RiskScore is the mean severity weight as a percentage of critical,
// rounded half away from zero. No indicators scores 0.
func RiskScore(indicators []models.Indicator) int {
	if len(indicators) == 0 {
		return 0
	}
	total := 0
	for _, ind := range indicators {
		weight, ok := severityWeights[ind.Severity]
		if !ok {
			weight = 1
		}
		total += weight
	}
	return int(math.Round(float64(total) / float64(len(indicators)*maxSeverityWeight) * 100))
}

// Classify maps a score to a verdict. escalate is true when the report
// severity must be forced to high.
func Classify(score int) (verdict models.Verdict, escalate bool) {
	switch {
	case score >= 80:
		return models.VerdictMalicious, true
	case score >= 30:
		return models.VerdictSuspicious, false
	default:
		return models.VerdictUnknown, false
	}
}

func (a *Analyzer) isInstitutional(domain string) bool {
	if a.institutionDomain == "" {
		return false
	}
	return domain == a.institutionDomain || strings.HasSuffix(domain, "."+a.institutionDomain)
}

func senderDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

func isShortenedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, s := range shortenerHosts {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
