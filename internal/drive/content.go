package drive

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ContentKind tags the JSON stored in AppData.Content.
type ContentKind string

const (
	KindArticle          ContentKind = "article"
	KindPost             ContentKind = "post"
	KindProfileAttribute ContentKind = "profile_attribute"
)

var (
	ErrUnknownContentKind = errors.New("unknown content kind")
	ErrInvalidContent     = errors.New("invalid content")
)

// Content is one of Article, Post or ProfileAttribute.
type Content interface {
	Kind() ContentKind
	validate() error
}

// Article is a long-form post.
type Article struct {
	Title    string   `json:"title"`
	Caption  string   `json:"caption"`
	Abstract string   `json:"abstract,omitempty"`
	Body     string   `json:"body"`
	Media    []string `json:"media,omitempty"`
}

func (Article) Kind() ContentKind { return KindArticle }

func (a Article) validate() error {
	if a.Title == "" {
		return fmt.Errorf("%w: article needs a title", ErrInvalidContent)
	}
	return nil
}

// Post is a short feed post; Media lists payload keys of the same file.
type Post struct {
	Caption string   `json:"caption"`
	Media   []string `json:"media,omitempty"`
}

func (Post) Kind() ContentKind { return KindPost }

func (p Post) validate() error {
	if p.Caption == "" && len(p.Media) == 0 {
		return fmt.Errorf("%w: empty post", ErrInvalidContent)
	}
	return nil
}

// ProfileAttribute is one named attribute of an identity's profile.
type ProfileAttribute struct {
	AttributeType string            `json:"attributeType"`
	Priority      int               `json:"priority"`
	Data          map[string]string `json:"data"`
}

func (ProfileAttribute) Kind() ContentKind { return KindProfileAttribute }

func (p ProfileAttribute) validate() error {
	if p.AttributeType == "" {
		return fmt.Errorf("%w: attribute type is required", ErrInvalidContent)
	}
	return nil
}

type contentEnvelope struct {
	Kind ContentKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// WrapContent renders c as the JSON stored in AppData.Content.
func WrapContent(c Content) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(contentEnvelope{Kind: c.Kind(), Data: data})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseContent converts decrypted AppData.Content into its typed variant.
func ParseContent(raw []byte) (Content, error) {
	var env contentEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	var c Content
	switch env.Kind {
	case KindArticle:
		var v Article
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		c = v
	case KindPost:
		var v Post
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		c = v
	case KindProfileAttribute:
		var v ProfileAttribute
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
		c = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentKind, env.Kind)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
