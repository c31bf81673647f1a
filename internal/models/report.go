package models

import "time"

type ReportType string

const (
	ReportTypePhishing   ReportType = "phishing"
	ReportTypeSpam       ReportType = "spam"
	ReportTypeMalware    ReportType = "malware"
	ReportTypeSuspicious ReportType = "suspicious"
	ReportTypeOther      ReportType = "other"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportTypePhishing, ReportTypeSpam, ReportTypeMalware, ReportTypeSuspicious, ReportTypeOther:
		return true
	}
	return false
}

// Severity is shared by reports and analyzer indicators.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type ReportStatus string

const (
	StatusPending       ReportStatus = "pending"
	StatusInvestigating ReportStatus = "investigating"
	StatusConfirmed     ReportStatus = "confirmed"
	StatusFalsePositive ReportStatus = "false_positive"
	StatusResolved      ReportStatus = "resolved"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInvestigating, StatusConfirmed, StatusFalsePositive, StatusResolved:
		return true
	}
	return false
}

// AllStatuses lists every workflow status in display order.
func AllStatuses() []ReportStatus {
	return []ReportStatus{StatusPending, StatusInvestigating, StatusConfirmed, StatusFalsePositive, StatusResolved}
}

type Verdict string

const (
	VerdictSafe       Verdict = "safe"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMalicious  Verdict = "malicious"
	VerdictUnknown    Verdict = "unknown"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictSafe, VerdictSuspicious, VerdictMalicious, VerdictUnknown:
		return true
	}
	return false
}

// Indicator is one heuristic finding produced by the analyzer
type Indicator struct {
	Type        string   `json:"type" bson:"type"`
	Description string   `json:"description" bson:"description"`
	Severity    Severity `json:"severity" bson:"severity"`
}

type AnalysisResults struct {
	RiskScore  int         `json:"riskScore" bson:"riskScore"`
	Indicators []Indicator `json:"indicators" bson:"indicators"`
	Verdict    Verdict     `json:"verdict" bson:"verdict"`
	AnalyzedBy string      `json:"analyzedBy" bson:"analyzedBy"`
	AnalyzedAt time.Time   `json:"analyzedAt" bson:"analyzedAt"`
}

type AdminNote struct {
	Note    string    `json:"note" bson:"note"`
	AddedBy string    `json:"addedBy" bson:"addedBy"`
	AddedAt time.Time `json:"addedAt" bson:"addedAt"`
}

type Attachment struct {
	Filename     string `json:"filename" bson:"filename"`
	OriginalName string `json:"originalName" bson:"originalName"`
	Mimetype     string `json:"mimetype" bson:"mimetype"`
	Size         int64  `json:"size" bson:"size"`
	StorageKey   string `json:"-" bson:"storageKey"`
}

// Report is a user-submitted suspicious e-mail. The e-mail fields never
// change after creation; reviewers only touch status, notes and verdict.
type Report struct {
	ID              string          `json:"id" bson:"-"`
	ReportedBy      string          `json:"reportedBy" bson:"reportedBy"`
	EmailSubject    string          `json:"emailSubject" bson:"emailSubject"`
	SenderEmail     string          `json:"senderEmail" bson:"senderEmail"`
	SenderName      string          `json:"senderName,omitempty" bson:"senderName,omitempty"`
	EmailContent    string          `json:"emailContent,omitempty" bson:"emailContent"`
	EmailHeaders    string          `json:"emailHeaders,omitempty" bson:"emailHeaders,omitempty"`
	ReportType      ReportType      `json:"reportType" bson:"reportType"`
	Severity        Severity        `json:"severity" bson:"severity"`
	Status          ReportStatus    `json:"status" bson:"status"`
	AnalysisResults AnalysisResults `json:"analysisResults" bson:"analysisResults"`
	AdminNotes      []AdminNote     `json:"adminNotes" bson:"adminNotes"`
	Attachments     []Attachment    `json:"attachments,omitempty" bson:"attachments,omitempty"`
	IPAddress       string          `json:"-" bson:"ipAddress,omitempty"`
	UserAgent       string          `json:"-" bson:"userAgent,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// Summary drops the bulky e-mail body, headers and attachments for list views.
func (r Report) Summary() Report {
	r.EmailContent = ""
	r.EmailHeaders = ""
	r.Attachments = nil
	return r
}
