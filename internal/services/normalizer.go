package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/keepwaifu/backend/internal/models"
)

var (
	userIDFields      = []string{"user_id", "userId", "id", "uid", "_id"}
	displayNameFields = []string{"first_name", "firstname", "firstName", "name", "display_name", "displayName"}
	usernameFields    = []string{"username", "handle", "user_name", "userName"}
	avatarFields      = []string{
		"photo_url", "photo", "avatar", "avatar_url", "picture", "image",
		"img_url", "img", "image_url", "thumbnail", "thumb", "userpic",
		"telegram_photo", "tg_photo",
	}
)

// Normalizer maps raw documents from any source onto models.Profile.
type Normalizer struct {
	avatars AvatarPolicy
}

func NewNormalizer(avatars AvatarPolicy) *Normalizer {
	return &Normalizer{avatars: avatars}
}

// Normalize returns nil when no user id can be extracted. Missing or
// malformed optional fields are left empty. Placeholder avatars are dropped.
func (n *Normalizer) Normalize(doc map[string]interface{}) *models.Profile {
	if doc == nil {
		return nil
	}
	userID := firstString(doc, userIDFields)
	if userID == "" {
		return nil
	}
	prof := &models.Profile{
		UserID:      userID,
		DisplayName: firstString(doc, displayNameFields),
		Username:    models.StrPtr(firstString(doc, usernameFields)),
		AvatarURL:   models.StrPtr(n.avatar(doc, true)),
	}
	return prof
}

func (n *Normalizer) avatar(doc map[string]interface{}, descend bool) string {
	for _, key := range avatarFields {
		v, ok := doc[key]
		if !ok || v == nil {
			continue
		}
		if u, ok := n.avatars.pick(v); ok {
			return u
		}
	}
	if descend {
		if nested, ok := toDoc(doc["profile"]); ok {
			return n.avatar(nested, false)
		}
	}
	return ""
}

func firstString(doc map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if s := stringify(doc[key]); s != "" {
			return s
		}
	}
	return ""
}

// stringify renders scalar ids and names; anything else yields "".
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case primitive.ObjectID:
		return t.Hex()
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return ""
	}
}

// toDoc accepts the map shapes the driver and JSON decoders produce.
func toDoc(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]interface{}:
		return t, true
	case bson.D:
		return t.Map(), true
	default:
		return nil, false
	}
}

func toList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case bson.A:
		return t, true
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
