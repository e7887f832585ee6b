// Package donorsearch schedules donor searches for blood requests.
//
// A search starts at the seeker's geohash cell and widens one precision level at a time
// until enough eligible donors are found or the cell cannot be widened further. Between
// attempts the scheduler sleeps for a delay derived from the time left before the donation.
//
//	s, _ := donorsearch.New(
//	    donorsearch.WithConfig(donorsearch.Config{TargetStrategy: donorsearch.TargetMultiplier}),
//	    donorsearch.WithLogger(slog.Default()),
//	)
//	plan, _ := s.Plan(ctx, donorsearch.Request{
//	    BloodQuantity:    2,
//	    Urgency:          donorsearch.Urgent,
//	    DonationDateTime: donation,
//	    Geohash:          "wh0r3qs",
//	    EligibleDonors:   1,
//	})
//	if plan.Outcome == donorsearch.OutcomeContinue {
//	    // search plan.ShortenedGeohash after plan.DelaySeconds
//	}
//
// The same calculations are served over HTTP by cmd/donorsearch, which also persists
// search sessions in Redis and announces due passes on NATS.
package donorsearch
