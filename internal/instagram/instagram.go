// internal/instagram/instagram.go
package instagram

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"clubbackend/internal/logger"
	"clubbackend/internal/middleware"
)

const defaultAPIBase = "https://graph.instagram.com"

// feedLimit caps how many posts the frontend carousel shows.
const feedLimit = 7

// Post is one mirrored feed entry.
type Post struct {
	ID      string `json:"id"`
	ImgURL  string `json:"imgUrl"`
	Link    string `json:"link"`
	Caption string `json:"caption"`
	Color   string `json:"color,omitempty"`
}

// Client mirrors the club's Instagram feed through the Graph API.
type Client struct {
	Token   string
	APIBase string
	HTTP    *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		Token:   token,
		APIBase: defaultAPIBase,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type mediaItem struct {
	ID           string `json:"id"`
	Caption      string `json:"caption"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Permalink    string `json:"permalink"`
}

type mediaResponse struct {
	Data  []mediaItem `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FetchPosts calls the Graph API. Any failure falls back to dummy posts so
// the frontend always has something to render.
func (c *Client) FetchPosts() []Post {
	if c.Token == "" {
		return dummyPosts()
	}

	endpoint := fmt.Sprintf(
		"%s/me/media?fields=id,caption,media_type,media_url,thumbnail_url,permalink&access_token=%s&limit=%d",
		c.APIBase, url.QueryEscape(c.Token), feedLimit)

	resp, err := c.HTTP.Get(endpoint)
	if err != nil {
		logger.LogWarn("Instagram API request failed: %v", err)
		return dummyPosts()
	}
	defer resp.Body.Close()

	var body mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.LogWarn("Instagram API response decode failed: %v", err)
		return dummyPosts()
	}
	if body.Error != nil {
		logger.LogWarn("Instagram API error: %s", body.Error.Message)
		return dummyPosts()
	}

	posts := make([]Post, 0, len(body.Data))
	for _, item := range body.Data {
		imgURL := item.MediaURL
		if item.MediaType == "VIDEO" {
			imgURL = item.ThumbnailURL
		}
		link := item.Permalink
		if link == "" {
			link = "https://instagram.com"
		}
		posts = append(posts, Post{
			ID:      item.ID,
			ImgURL:  imgURL,
			Link:    link,
			Caption: item.Caption,
		})
	}
	return posts
}

// PostsHandler handles GET /api/instagram/posts.
func (c *Client) PostsHandler(w http.ResponseWriter, r *http.Request) {
	middleware.WriteSuccess(w, map[string]interface{}{"data": c.FetchPosts()})
}

// dummyPosts is the placeholder feed served before the API is wired up or
// when it errors.
func dummyPosts() []Post {
	colors := []string{"#3986c6", "#e74c3c", "#2ecc71", "#f1c40f", "#9b59b6", "#34495e", "#95a5a6"}
	posts := make([]Post, 0, len(colors))
	for i, color := range colors {
		posts = append(posts, Post{
			ID:     fmt.Sprintf("%d", i+1),
			ImgURL: fmt.Sprintf("https://via.placeholder.com/600x600/%s/ffffff?text=Insta+%d", color[1:], i+1),
			Link:   "https://instagram.com",
			Color:  color,
		})
	}
	return posts
}
