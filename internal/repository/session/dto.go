package session

import (
	"fmt"
	"strconv"
	"time"

	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/urgency"
)

// sessionToHash converts a domain Session to a map for HSET. Times are unix milliseconds, 0 for unset.
func sessionToHash(s domsession.Session) map[string]string {
	st := s.State()
	return map[string]string{
		"id":                 st.ID,
		"seeker_id":          st.SeekerID,
		"request_post_id":    st.RequestPostID,
		"blood_quantity":     strconv.Itoa(st.BloodQuantity),
		"urgency":            string(st.Urgency),
		"donation_date_time": formatMillis(st.DonationDateTime),
		"seeker_geohash":     st.SeekerGeohash,
		"active_geohash":     st.ActiveGeohash,
		"donors_found":       strconv.Itoa(st.DonorsFound),
		"rejected_donors":    strconv.Itoa(st.RejectedDonors),
		"initiation_count":   strconv.Itoa(st.InitiationCount),
		"status":             string(st.Status),
		"next_run_at":        formatMillis(st.NextRunAt),
		"created_at":         formatMillis(st.CreatedAt),
		"updated_at":         formatMillis(st.UpdatedAt),
	}
}

// sessionFromHash hydrates a domain Session from an HGETALL result map.
func sessionFromHash(m map[string]string) (domsession.Session, error) {
	var (
		st  domsession.State
		err error
	)
	st.ID = m["id"]
	if st.ID == "" {
		return domsession.Session{}, fmt.Errorf("missing id")
	}
	st.SeekerID = m["seeker_id"]
	st.RequestPostID = m["request_post_id"]
	st.Urgency = urgency.Urgency(m["urgency"])
	st.SeekerGeohash = m["seeker_geohash"]
	st.ActiveGeohash = m["active_geohash"]
	st.Status = domsession.Status(m["status"])
	if !st.Status.IsValid() {
		return domsession.Session{}, fmt.Errorf("invalid status %q", st.Status)
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{"blood_quantity", &st.BloodQuantity},
		{"donors_found", &st.DonorsFound},
		{"rejected_donors", &st.RejectedDonors},
		{"initiation_count", &st.InitiationCount},
	}
	for _, f := range ints {
		if *f.dst, err = parseInt(m, f.field); err != nil {
			return domsession.Session{}, err
		}
	}

	times := []struct {
		field string
		dst   *time.Time
	}{
		{"donation_date_time", &st.DonationDateTime},
		{"next_run_at", &st.NextRunAt},
		{"created_at", &st.CreatedAt},
		{"updated_at", &st.UpdatedAt},
	}
	for _, f := range times {
		if *f.dst, err = parseMillis(m, f.field); err != nil {
			return domsession.Session{}, err
		}
	}

	return domsession.Reconstruct(st), nil
}

func parseInt(m map[string]string, field string) (int, error) {
	v := m[field]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return n, nil
}

func formatMillis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(m map[string]string, field string) (time.Time, error) {
	v := m[field]
	if v == "" || v == "0" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
