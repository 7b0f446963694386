//go:build integration_test || all_tests

package integration_testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/biopeak/backend/internal/middleware"
	"github.com/biopeak/backend/internal/progression"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) login(ctx context.Context, t *testing.T) string {
	t.Helper()

	creds, err := json.Marshal(map[string]string{
		"username": testUsername,
		"password": testPassword,
	})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(
		ctx, "POST",
		fmt.Sprintf("%s/a/login", serverEndpoint),
		bytes.NewReader(creds),
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	require.NotEmpty(t, loginResp.Token)
	return loginResp.Token
}

func (s *IntegrationTestSuite) recordActivity(
	ctx context.Context, t *testing.T,
	token string, params progression.RecordActivityParams,
) (*http.Response, *progression.Snapshot) {
	t.Helper()

	body, err := json.Marshal(params)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(
		ctx, "POST",
		fmt.Sprintf("%s/progression/activity", serverEndpoint),
		bytes.NewReader(body),
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.AuthTokenHeader, token)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var snapshot progression.Snapshot
	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(respBytes, &snapshot), "body: %s", respBytes)
	}
	return resp, &snapshot
}

func (s *IntegrationTestSuite) TestRecordActivity_FullFlow() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.login(ctx, t)
	userID := gofakeit.UUID()

	params := progression.RecordActivityParams{
		UserID:      userID,
		Kind:        "protocol-completed",
		Category:    "cold-exposure",
		DedupeToken: "morning-plunge",
		Metadata:    map[string]string{"cold-minutes": "3"},
	}

	resp, snapshot := s.recordActivity(ctx, t, token, params)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, userID, snapshot.UserID)
	assert.Equal(t, 1, snapshot.CurrentStreak)
	assert.Equal(t, 1, snapshot.LongestStreak)
	// 10 for the protocol, 10 for the first-protocol unlock
	assert.Equal(t, 20, snapshot.TotalPoints)
	assert.Equal(t, 1, snapshot.Level)
	require.Len(t, snapshot.NewlyUnlocked, 1)
	assert.Equal(t, "ach-first-protocol", snapshot.NewlyUnlocked[0].ID)

	// same activity again: dedupe window hit, prior state returned as 200
	resp, duplicate := s.recordActivity(ctx, t, token, params)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, snapshot.TotalPoints, duplicate.TotalPoints)
	assert.Empty(t, duplicate.NewlyUnlocked)

	// different token on the same day is a fresh activity
	params.DedupeToken = "evening-plunge"
	resp, second := s.recordActivity(ctx, t, token, params)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 30, second.TotalPoints)
	assert.Equal(t, 1, second.CurrentStreak)
}

func (s *IntegrationTestSuite) TestGetSnapshot() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.login(ctx, t)
	userID := gofakeit.UUID()

	_, recorded := s.recordActivity(ctx, t, token, progression.RecordActivityParams{
		UserID:      userID,
		Kind:        "supplement-taken",
		Category:    "sleep",
		DedupeToken: "magnesium",
	})

	req, err := http.NewRequestWithContext(
		ctx, "GET",
		fmt.Sprintf("%s/progression/snapshot/%s", serverEndpoint, userID),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set(middleware.AuthTokenHeader, token)

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot progression.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, recorded.TotalPoints, snapshot.TotalPoints)
	// supplements do not feed the streak
	assert.Equal(t, 0, snapshot.CurrentStreak)

	// unknown users have no progression state at all
	req, err = http.NewRequestWithContext(
		ctx, "GET",
		fmt.Sprintf("%s/progression/snapshot/%s", serverEndpoint, gofakeit.UUID()),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set(middleware.AuthTokenHeader, token)

	resp, err = s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestProgression_Unauthorized() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx, "GET",
		fmt.Sprintf("%s/progression/snapshot/%s", serverEndpoint, gofakeit.UUID()),
		nil,
	)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestCatalog_PublicAccess() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, section := range []string{"protocols", "supplements", "equipment", "videos", "levels"} {
		req, err := http.NewRequestWithContext(
			ctx, "GET",
			fmt.Sprintf("%s/catalog/%s", serverEndpoint, section),
			nil,
		)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "section %s", section)

		var items []json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&items), "section %s", section)
		assert.NotEmpty(t, items, "section %s", section)
		resp.Body.Close()
	}
}
