// Package restclient is the REST backend implementation of the repository.
// Every request carries the bearer token of the session found in the request
// context; a 401 from the backend surfaces as repository.ErrUnauthorized.
package restclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/session"
	"marketplace-service/internal/util"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIError is a non-2xx answer from the backend. Message is safe to show
// to the user.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the REST backend
type Client struct {
	http         *resty.Client
	serviceToken string
	logger       *zap.Logger
}

var _ repository.Repository = (*Client)(nil)

// New creates a REST backend client
func New(baseURL string, timeout time.Duration) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	c := &Client{http: r, logger: util.GetLogger()}
	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		token := session.Token(req.Context())
		if token == "" {
			token = c.serviceToken
		}
		if token != "" {
			req.SetAuthToken(token)
		}
		return nil
	})
	return c
}

// SetServiceToken sets the token sent when the request context has no
// session, which is the case for the payout worker.
func (c *Client) SetServiceToken(token string) {
	c.serviceToken = token
}

// Close releases idle connections
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized:
		c.logger.Info("Backend rejected session token", zap.String("path", path))
		return repository.ErrUnauthorized
	case status == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, repository.ErrNotFound)
	case resp.IsError():
		apiErr := &APIError{Status: status, Message: http.StatusText(status)}
		if eb, ok := resp.Error().(*errorBody); ok {
			switch {
			case eb.Message != "":
				apiErr.Message = eb.Message
			case eb.Error != "":
				apiErr.Message = eb.Error
			}
		}
		return apiErr
	}
	return nil
}

// Get issues a GET and decodes the JSON answer into out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH with a JSON body
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func listingPath(id string) string { return "/listings/" + url.PathEscape(id) }

type createListingBody struct {
	models.ListingPayload
	SellerID string `json:"seller_id,omitempty"`
}

func (c *Client) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	if err := c.Get(ctx, listingPath(id), &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (c *Client) CreateListing(ctx context.Context, sellerID string, payload models.ListingPayload) (*models.Listing, error) {
	var listing models.Listing
	body := createListingBody{ListingPayload: payload, SellerID: sellerID}
	if err := c.Post(ctx, "/listings", body, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (c *Client) UpdateListing(ctx context.Context, id string, payload models.ListingPayload) (*models.Listing, error) {
	var listing models.Listing
	if err := c.Put(ctx, listingPath(id), payload, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (c *Client) PublishListing(ctx context.Context, id string) error {
	return c.Patch(ctx, listingPath(id), map[string]string{"status": models.ListingStatusPublished}, nil)
}

func (c *Client) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := c.Get(ctx, "/categories/"+url.PathEscape(id), &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.Get(ctx, "/categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// Promo codes live only in the hosted backend.
func (c *Client) FindPromoByCode(context.Context, string) (*models.PromoCode, error) {
	return nil, repository.ErrNotConfigured
}

func (c *Client) CreateOrder(ctx context.Context, order *models.Order) error {
	var created models.Order
	if err := c.Post(ctx, "/orders", order, &created); err != nil {
		return err
	}
	order.ID = created.ID
	order.CreatedAt = created.CreatedAt
	if created.Status != "" {
		order.Status = created.Status
	}
	return nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := c.Get(ctx, "/orders/"+url.PathEscape(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreatePayout(ctx context.Context, payout *models.Payout) error {
	var created models.Payout
	err := c.Post(ctx, "/payouts", payout, &created)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		return nil
	}
	if err != nil {
		return err
	}
	payout.ID = created.ID
	payout.CreatedAt = created.CreatedAt
	return nil
}

func (c *Client) ListPayoutsBySeller(ctx context.Context, sellerID string) ([]models.Payout, error) {
	var payouts []models.Payout
	if err := c.Get(ctx, "/payouts?seller_id="+url.QueryEscape(sellerID), &payouts); err != nil {
		return nil, err
	}
	return payouts, nil
}

// Payment methods and KYC documents live only in the hosted backend.
func (c *Client) ListPaymentMethods(context.Context, string) ([]models.PaymentMethod, error) {
	return nil, repository.ErrNotConfigured
}

func (c *Client) ListKYCDocuments(context.Context, string) ([]models.KYCDocument, error) {
	return nil, repository.ErrNotConfigured
}
