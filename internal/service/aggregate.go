package service

import "github.com/maheshrc27/socialpilot/internal/models"

// AggregateStatus derives a post's status from all of its platform rows.
//
//   - every row PUBLISHED or SCHEDULED, at least one PUBLISHED: PUBLISHED
//   - every row natively SCHEDULED: SCHEDULED, the provider delivers it
//   - every row FAILED: FAILED
//   - anything else (a mix, or work still PENDING): SCHEDULED
//
// A post is never PUBLISHED while a row has failed and never FAILED while a
// row succeeded.
func AggregateStatus(statuses []models.PostPlatformStatus) models.PostStatus {
	if len(statuses) == 0 {
		return models.PostStatusScheduled
	}

	var published, failed, delivered int
	for _, s := range statuses {
		switch s {
		case models.PostPlatformPublished:
			published++
			delivered++
		case models.PostPlatformScheduled:
			delivered++
		case models.PostPlatformFailed:
			failed++
		}
	}

	switch {
	case delivered == len(statuses) && published > 0:
		return models.PostStatusPublished
	case failed == len(statuses):
		return models.PostStatusFailed
	default:
		return models.PostStatusScheduled
	}
}

func platformStatuses(platforms []*models.PostPlatform) []models.PostPlatformStatus {
	out := make([]models.PostPlatformStatus, len(platforms))
	for i, pp := range platforms {
		out[i] = pp.Status
	}
	return out
}
