package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAvatarPolicy_IsReal(t *testing.T) {
	p := NewAvatarPolicy(nil)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/u/1.png", true},
		{"http://t.me/i/userpic/320/abc.jpg", true},
		{"https://picsum.photos/200", false},
		{"https://fastly.picsum.photos/id/1/200", false},
		{"https://app.example.com/static/default.png", false},
		{"/static/default.png", false},
		{"ftp://example.com/x.png", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsReal(tt.url))
		})
	}

	assert.False(t, p.IsPlaceholder(""))
	assert.True(t, p.IsPlaceholder("https://picsum.photos/1"))
}

func TestAvatarPolicy_Pick(t *testing.T) {
	p := NewAvatarPolicy([]string{"placeholder"})

	u, ok := p.pick("https://placeholder/x https://real-cdn/y.png")
	require.True(t, ok)
	assert.Equal(t, "https://real-cdn/y.png", u)

	u, ok = p.pick(bson.A{"https://placeholder/x", 7, "https://real-cdn/z.png"})
	require.True(t, ok)
	assert.Equal(t, "https://real-cdn/z.png", u)

	u, ok = p.pick("AgACAgIAAxkBAAIBY2Zabc_def-123")
	require.True(t, ok)
	assert.Equal(t, "https://t.me/i/userpic/320/AgACAgIAAxkBAAIBY2Zabc_def-123", u)

	_, ok = p.pick([]string{"https://placeholder/a", "short"})
	assert.False(t, ok)

	assert.Nil(t, p.Sanitize(strp("https://placeholder/x")))
	assert.Equal(t, "https://real-cdn/y.png", *p.Sanitize(strp(" https://real-cdn/y.png ")))
}

func TestNormalizer_FieldPriority(t *testing.T) {
	n := NewNormalizer(NewAvatarPolicy(nil))

	prof := n.Normalize(map[string]interface{}{
		"id":         int64(12345),
		"first_name": "Alice",
		"name":       "ignored",
		"handle":     "alice_h",
		"photo":      "https://picsum.photos/300",
		"avatar":     "https://cdn.example.com/alice.jpg",
	})
	require.NotNil(t, prof)
	assert.Equal(t, "12345", prof.UserID)
	assert.Equal(t, "Alice", prof.DisplayName)
	assert.Equal(t, "alice_h", *prof.Username)
	assert.Equal(t, "https://cdn.example.com/alice.jpg", *prof.AvatarURL)
}

func TestNormalizer_NestedProfileAvatar(t *testing.T) {
	n := NewNormalizer(NewAvatarPolicy(nil))

	prof := n.Normalize(bson.M{
		"user_id": "8",
		"profile": bson.D{{Key: "picture", Value: "https://cdn.example.com/p.png"}},
	})
	require.NotNil(t, prof)
	assert.Equal(t, "https://cdn.example.com/p.png", *prof.AvatarURL)
	assert.Empty(t, prof.DisplayName)
	assert.Nil(t, prof.Username)
}

func TestNormalizer_MissingID(t *testing.T) {
	n := NewNormalizer(NewAvatarPolicy(nil))

	assert.Nil(t, n.Normalize(nil))
	assert.Nil(t, n.Normalize(map[string]interface{}{"first_name": "Bob"}))
	assert.Nil(t, n.Normalize(map[string]interface{}{"user_id": "  "}))
}

func TestNormalizer_MalformedFieldsAreEmpty(t *testing.T) {
	n := NewNormalizer(NewAvatarPolicy(nil))
	oid := primitive.NewObjectID()

	prof := n.Normalize(map[string]interface{}{
		"_id":        oid,
		"first_name": []string{"not", "a", "name"},
		"username":   map[string]interface{}{"x": 1},
		"photo_url":  42,
	})
	require.NotNil(t, prof)
	assert.Equal(t, oid.Hex(), prof.UserID)
	assert.Empty(t, prof.DisplayName)
	assert.Nil(t, prof.Username)
	assert.Nil(t, prof.AvatarURL)
}
