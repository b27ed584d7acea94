package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tutorbase/realtime/internal/model"
)

// GetBalance fetches a user's current balance.
func (c *Client) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	var balance model.Balance
	path := "/api/v1/users/" + strconv.FormatInt(userID, 10) + "/balance"
	if err := c.get(ctx, path, nil, &balance); err != nil {
		return nil, fmt.Errorf("get balance for user %d: %w", userID, err)
	}
	return &balance, nil
}

// GetDashboardMetrics fetches a user's dashboard counters.
func (c *Client) GetDashboardMetrics(ctx context.Context, userID int64) (*model.DashboardMetrics, error) {
	var metrics model.DashboardMetrics
	path := "/api/v1/users/" + strconv.FormatInt(userID, 10) + "/dashboard/metrics"
	if err := c.get(ctx, path, nil, &metrics); err != nil {
		return nil, fmt.Errorf("get dashboard metrics for user %d: %w", userID, err)
	}
	return &metrics, nil
}

// GetInvitation fetches the current status of a single invitation.
func (c *Client) GetInvitation(ctx context.Context, invitationID string) (*model.InvitationStatus, error) {
	var status model.InvitationStatus
	if err := c.get(ctx, "/api/v1/invitations/"+invitationID, nil, &status); err != nil {
		return nil, fmt.Errorf("get invitation %s: %w", invitationID, err)
	}
	return &status, nil
}
