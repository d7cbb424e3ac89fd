package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rahuul2001/recreated-video-sentiment-analysis-saas/internal/models"
)

// DefaultClerkAPIURL is the identity provider's backend API.
const DefaultClerkAPIURL = "https://api.clerk.com"

// ClerkClient fetches user profiles from the Clerk backend API.
type ClerkClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClerkClient creates a client. An empty baseURL uses DefaultClerkAPIURL.
func NewClerkClient(baseURL, secretKey string, httpClient *http.Client) (*ClerkClient, error) {
	if secretKey == "" {
		return nil, errors.New("clerk secret key is required")
	}
	if baseURL == "" {
		baseURL = DefaultClerkAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &ClerkClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: httpClient,
	}, nil
}

type clerkUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	ImageURL              string `json:"image_url"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// FetchProfile implements ProfileFetcher.
func (c *ClerkClient) FetchProfile(ctx context.Context, externalID string) (*models.Profile, error) {
	endpoint := c.baseURL + "/v1/users/" + url.PathEscape(externalID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user lookup failed: %s", resp.Status)
	}

	var u clerkUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}

	return u.profile(), nil
}

func (u *clerkUser) profile() *models.Profile {
	profile := &models.Profile{}

	for _, addr := range u.EmailAddresses {
		if addr.ID == u.PrimaryEmailAddressID {
			profile.Email = addr.EmailAddress
			break
		}
	}
	if profile.Email == "" && len(u.EmailAddresses) > 0 {
		profile.Email = u.EmailAddresses[0].EmailAddress
	}

	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		profile.Name = &name
	}
	if u.ImageURL != "" {
		avatar := u.ImageURL
		profile.AvatarURL = &avatar
	}

	return profile
}
