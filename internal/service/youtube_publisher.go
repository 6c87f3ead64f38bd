package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/h2non/filetype"
	"github.com/maheshrc27/socialpilot/internal/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	youtubeTitleLimit = 100
	// sniffLen is the header size filetype needs to recognise a container.
	sniffLen = 262
)

// YoutubePublisher streams the post's video from its media URL into a
// videos.insert upload.
type YoutubePublisher struct {
	client   *http.Client
	endpoint string
}

// NewYoutubePublisher uses the public API when endpoint is empty.
func NewYoutubePublisher(client *http.Client, endpoint string) *YoutubePublisher {
	return &YoutubePublisher{client: client, endpoint: endpoint}
}

func (p *YoutubePublisher) Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
	if len(req.MediaItems) == 0 {
		return models.PublishFailure("YouTube requires a video"), nil
	}

	download, err := http.NewRequestWithContext(ctx, http.MethodGet, req.MediaItems[0].URL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating download request: %w", err)
	}
	resp, err := p.client.Do(download)
	if err != nil {
		return nil, fmt.Errorf("error downloading video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.PublishFailure(fmt.Sprintf("video download returned status %d", resp.StatusCode)), nil
	}

	body := bufio.NewReaderSize(resp.Body, sniffLen)
	head, err := body.Peek(sniffLen)
	if err != nil && len(head) == 0 {
		return nil, fmt.Errorf("error reading video: %w", err)
	}
	if !filetype.IsVideo(head) {
		kind, _ := filetype.Match(head)
		return models.PublishFailure(fmt.Sprintf("YouTube requires a video, got %s", describeKind(kind.MIME.Value))), nil
	}

	svc, err := p.service(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	title, description := youtubeMetadata(req.Content)
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(body).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return models.PublishFailure(fmt.Sprintf("YouTube API returned status %d: %s", apiErr.Code, apiErr.Message)), nil
		}
		return nil, fmt.Errorf("error uploading video: %w", err)
	}

	return &models.PublishResult{
		Success:         true,
		PlatformPostID:  uploaded.Id,
		PlatformPostURL: "https://youtu.be/" + uploaded.Id,
	}, nil
}

func (p *YoutubePublisher) service(ctx context.Context, accessToken string) (*youtube.Service, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(p.endpoint, "/")+"/"))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube service: %w", err)
	}
	return svc, nil
}

// youtubeMetadata uses the first line as the title and the whole text as the description.
func youtubeMetadata(content string) (title, description string) {
	title = strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	if title == "" {
		title = "Untitled"
	}
	if r := []rune(title); len(r) > youtubeTitleLimit {
		title = string(r[:youtubeTitleLimit])
	}
	return title, content
}

func describeKind(mime string) string {
	if mime == "" {
		return "unknown content"
	}
	return mime
}
