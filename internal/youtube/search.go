package youtube

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/skill-gap/internal/ai"
)

const SearchPath = "/search"

// SearchParams maps to search.list query parameters. ytparam is the
// parameter name used by buildParams; zero values are not sent.
type SearchParams struct {
	Query             string   `ytparam:"q"`
	Part              string   `ytparam:"part"`
	Type              string   `ytparam:"type"`
	MaxResults        int      `ytparam:"maxResults"`
	Order             string   `ytparam:"order"`
	RelevanceLanguage string   `ytparam:"relevanceLanguage"`
	SafeSearch        string   `ytparam:"safeSearch"`
	VideoDuration     string   `ytparam:"videoDuration"`
	Topics            []string `ytparam:"topicId"`
}

// Search returns up to MaxResults videos matching the query.
func (c *Client) Search(ctx context.Context, params *SearchParams) ([]*Video, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("search query is required")
	}

	p := *params
	if p.Part == "" {
		p.Part = "snippet"
	}
	if p.Type == "" {
		p.Type = "video"
	}
	if p.MaxResults <= 0 {
		p.MaxResults = 5
	}
	limit := p.MaxResults
	if p.MaxResults > maxPerPage {
		p.MaxResults = maxPerPage
	}

	items, err := c.getItems(ctx, c.APIURL+SearchPath, buildParams(&p), limit)
	if err != nil {
		return nil, err
	}

	var videos []*Video
	cfg := &mapstructure.DecoderConfig{
		Result:  &videos,
		TagName: "json",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode search items: %w", err)
	}

	c.logger.Debug("youtube search finished", zap.String("query", p.Query), zap.Int("videos", len(videos)))
	return videos, nil
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(value.Type()) {
		key := field.Tag.Get("ytparam")
		if key == "" {
			continue
		}

		switch v := value.FieldByIndex(field.Index).Interface().(type) {
		case []string:
			for _, s := range v {
				q.Add(key, s)
			}
		case int:
			if v != 0 {
				q.Set(key, strconv.Itoa(v))
			}
		default:
			if s := fmt.Sprintf("%v", v); s != "" {
				q.Set(key, s)
			}
		}
	}
	return q
}

// Advisor implements ai.Advisor with plain searches.
type Advisor struct {
	client      *Client
	perSkill    int
	querySuffix string
}

func NewAdvisor(client *Client, perSkill int) *Advisor {
	if perSkill <= 0 {
		perSkill = 2
	}
	return &Advisor{client: client, perSkill: perSkill, querySuffix: "tutorial"}
}

// Recommend searches once per skill. A failed search is recorded on that
// skill's entry and does not stop the others; only cancellation does.
func (a *Advisor) Recommend(ctx context.Context, skills []string) ([]ai.SkillResources, error) {
	out := make([]ai.SkillResources, 0, len(skills))
	for _, skill := range skills {
		entry := ai.SkillResources{Skill: skill, Resources: []ai.Resource{}}

		videos, err := a.client.Search(ctx, &SearchParams{
			Query:      strings.TrimSpace(skill + " " + a.querySuffix),
			MaxResults: a.perSkill,
			Order:      "relevance",
			SafeSearch: "strict",
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.client.logger.Warn("youtube search failed", zap.String("skill", skill), zap.Error(err))
			entry.Error = err.Error()
			out = append(out, entry)
			continue
		}

		for _, v := range videos {
			if v.URL() == "" {
				continue
			}
			entry.Resources = append(entry.Resources, ai.Resource{
				Title:   v.Snippet.Title,
				URL:     v.URL(),
				Channel: v.Snippet.ChannelTitle,
			})
		}
		out = append(out, entry)
	}
	return out, nil
}
