package apiclient

import "context"

// ReferralSummary is the normalized view of the referrals endpoint: the
// users this account referred and the account's own invite code.
type ReferralSummary struct {
	Users []map[string]any
	Code  string
}

// Referrals fetches the caller's referral list. cachedUser, which may be
// nil, is consulted as a fallback source for the invite code because older
// backend builds only stored it on the profile.
func (c *Client) Referrals(ctx context.Context, cachedUser map[string]any) (*ReferralSummary, error) {
	var payload map[string]any
	if err := c.getJSON(ctx, pathReferrals, &payload); err != nil {
		return nil, err
	}

	return &ReferralSummary{
		Users: UsersFromPayload(payload),
		Code:  ReferralCodeFromPayload(payload, cachedUser),
	}, nil
}
