package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/foliosend/foliosend/pkg/models"
)

func TestContactFromSession(t *testing.T) {
	cfg := DefaultConfig()
	start := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	session := &models.Session{
		ID:                "s1",
		OwnerID:           "owner-1",
		ViewerEmail:       "ana@example.com",
		IPAddress:         "10.0.0.5",
		ContentType:       models.ContentTypeDocument,
		Duration:          200,
		CompletionPercent: 100,
		Downloaded:        true,
		StartTime:         start,
	}

	contact := ContactFromSession(session, cfg)

	assert.Equal(t, "owner-1", contact.OwnerID)
	assert.Equal(t, "email:ana@example.com", contact.ViewerKey)
	assert.Equal(t, 1, contact.ViewCount)
	assert.Equal(t, 200.0, contact.TotalTime)
	assert.Equal(t, 80.0, contact.AvgEngagement)
	assert.True(t, contact.HotLead) // score 80 clears the threshold
	assert.Equal(t, start, contact.FirstSeen)
	assert.Equal(t, start, contact.LastSeen)
}

func TestMergeContactsCommutative(t *testing.T) {
	t1 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 4, 3, 8, 0, 0, 0, time.UTC)

	a := models.Contact{ViewerKey: "email:x@example.com", ViewCount: 2, TotalTime: 100, AvgEngagement: 60, FirstSeen: t1, LastSeen: t1}
	b := models.Contact{ViewerKey: "email:x@example.com", ViewCount: 1, TotalTime: 40, AvgEngagement: 30, HotLead: true, FirstSeen: t2, LastSeen: t2}

	ab := MergeContacts(a, b)
	ba := MergeContacts(b, a)

	assert.Equal(t, ab.ViewCount, ba.ViewCount)
	assert.Equal(t, ab.TotalTime, ba.TotalTime)
	assert.InDelta(t, ab.AvgEngagement, ba.AvgEngagement, 1e-9)
	assert.Equal(t, ab.HotLead, ba.HotLead)
	assert.Equal(t, ab.FirstSeen, ba.FirstSeen)
	assert.Equal(t, ab.LastSeen, ba.LastSeen)

	assert.Equal(t, 3, ab.ViewCount)
	assert.Equal(t, 140.0, ab.TotalTime)
	assert.InDelta(t, 50.0, ab.AvgEngagement, 1e-9) // (60*2 + 30*1) / 3
	assert.True(t, ab.HotLead)
	assert.Equal(t, t1, ab.FirstSeen)
	assert.Equal(t, t2, ab.LastSeen)
}

func TestMergeContactsAssociative(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	a := models.Contact{ViewCount: 1, TotalTime: 10, AvgEngagement: 20, FirstSeen: base, LastSeen: base}
	b := models.Contact{ViewCount: 2, TotalTime: 50, AvgEngagement: 80, FirstSeen: base.Add(time.Hour), LastSeen: base.Add(time.Hour)}
	c := models.Contact{ViewCount: 1, TotalTime: 30, AvgEngagement: 50, HotLead: true, FirstSeen: base.Add(2 * time.Hour), LastSeen: base.Add(2 * time.Hour)}

	left := MergeContacts(MergeContacts(a, b), c)
	right := MergeContacts(a, MergeContacts(b, c))

	assert.Equal(t, left.ViewCount, right.ViewCount)
	assert.Equal(t, left.TotalTime, right.TotalTime)
	assert.InDelta(t, left.AvgEngagement, right.AvgEngagement, 1e-9)
	assert.Equal(t, left.HotLead, right.HotLead)
	assert.Equal(t, left.FirstSeen, right.FirstSeen)
	assert.Equal(t, left.LastSeen, right.LastSeen)
}

func TestMergeContactsIdentityFieldsFill(t *testing.T) {
	a := models.Contact{ViewerKey: "ip:10.0.0.1", IPAddress: "10.0.0.1", ViewCount: 1}
	b := models.Contact{ViewerKey: "ip:10.0.0.1", IPAddress: "10.0.0.1", Email: "late@example.com", ViewCount: 1}

	merged := MergeContacts(a, b)
	assert.Equal(t, "late@example.com", merged.Email)
	assert.Equal(t, "10.0.0.1", merged.IPAddress)
}
