package scoring

import (
	"github.com/foliosend/foliosend/pkg/models"
)

// ContactFromSession builds the contact delta for one closed session,
// ready to be merged into the stored contact record.
func ContactFromSession(s *models.Session, cfg Config) models.Contact {
	score := Score(s, cfg)
	return models.Contact{
		OwnerID:       s.OwnerID,
		ViewerKey:     ViewerKey(s),
		Email:         s.ViewerEmail,
		IPAddress:     s.IPAddress,
		ViewCount:     1,
		TotalTime:     sanitize(s.Duration, "duration"),
		AvgEngagement: float64(score),
		HotLead:       IsHotLead(score, s.Downloaded, s.ReturnVisitCount),
		FirstSeen:     s.StartTime,
		LastSeen:      s.StartTime,
	}
}

// MergeContacts combines two contact records for the same viewer key.
// The merge is commutative and associative: sum the view counts,
// view-weight the mean engagement, OR the hot-lead flag, min/max the
// seen timestamps. Concurrent session-close events applied in any
// order converge to the same record.
func MergeContacts(a, b models.Contact) models.Contact {
	merged := a
	if merged.ID == "" {
		merged.ID = b.ID
	}
	if merged.OwnerID == "" {
		merged.OwnerID = b.OwnerID
	}
	if merged.ViewerKey == "" {
		merged.ViewerKey = b.ViewerKey
	}
	if merged.Email == "" {
		merged.Email = b.Email
	}
	if merged.IPAddress == "" {
		merged.IPAddress = b.IPAddress
	}

	total := a.ViewCount + b.ViewCount
	if total > 0 {
		merged.AvgEngagement = (a.AvgEngagement*float64(a.ViewCount) + b.AvgEngagement*float64(b.ViewCount)) / float64(total)
	}
	merged.ViewCount = total
	merged.TotalTime = a.TotalTime + b.TotalTime
	merged.HotLead = a.HotLead || b.HotLead

	if merged.FirstSeen.IsZero() || (!b.FirstSeen.IsZero() && b.FirstSeen.Before(merged.FirstSeen)) {
		merged.FirstSeen = b.FirstSeen
	}
	if b.LastSeen.After(merged.LastSeen) {
		merged.LastSeen = b.LastSeen
	}
	return merged
}
