package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/keepwaifu/backend/internal/models"
)

type resolverFixture struct {
	primary  *fakeProfileStore
	global   *fakeSource
	legacyA  *fakeSource
	legacyB  *fakeSource
	sync     *ProfileSync
	resolver *ProfileResolver
}

func newResolverFixture(t *testing.T, hosts []string) *resolverFixture {
	t.Helper()
	avatars := NewAvatarPolicy(hosts)
	f := &resolverFixture{
		primary: newFakeProfileStore(nil),
		global:  newFakeSource("global_user_profiles", nil),
		legacyA: newFakeSource("legacy:waifu", nil),
		legacyB: newFakeSource("legacy:husband", nil),
	}
	f.primary.avatars = avatars
	f.sync = NewProfileSync(f.primary, nil, time.Second)
	f.resolver = NewProfileResolver(ResolverConfig{
		Primary:     f.primary,
		Secondaries: []DocumentSource{f.global, f.legacyA, f.legacyB},
		Avatars:     avatars,
		DefaultName: "Traveler",
		Sync:        f.sync,
		Timeout:     time.Second,
	})
	t.Cleanup(f.sync.Wait)
	return f
}

func TestResolve_UnknownUserGetsDefaults(t *testing.T) {
	f := newResolverFixture(t, nil)

	prof, outcome := f.resolver.Resolve(context.Background(), "42", models.ProfileHints{})
	assert.Equal(t, OutcomeDefault, outcome)
	assert.Equal(t, models.Profile{UserID: "42", DisplayName: "Traveler"}, prof)

	f.sync.Wait()
	stored := f.primary.docs["42"]
	assert.Equal(t, "Traveler", stored["firstname"])
	assert.NotContains(t, stored, "photo_url")
}

func TestResolve_PrimaryIsAuthoritative(t *testing.T) {
	f := newResolverFixture(t, nil)
	f.primary.docs["1"] = bson.M{
		"user_id":   "1",
		"firstname": "Mika",
		"photo_url": "https://cdn.example.com/mika.png",
	}
	f.global.docs["1"] = bson.M{"user_id": "1", "first_name": "Other", "photo_url": "https://cdn.example.com/other.png"}

	prof, outcome := f.resolver.Resolve(context.Background(), "1", models.ProfileHints{})
	assert.Equal(t, OutcomeFound, outcome)
	assert.Equal(t, "Mika", prof.DisplayName)
	assert.Equal(t, "https://cdn.example.com/mika.png", *prof.AvatarURL)
	assert.Zero(t, f.global.Calls())
}

func TestResolve_RealAvatarBeatsPlaceholder(t *testing.T) {
	f := newResolverFixture(t, []string{"placeholder"})
	f.legacyA.docs["7"] = bson.M{"avatar": "https://placeholder/x"}
	f.legacyB.docs["7"] = bson.M{"avatar": "https://real-cdn/y.png"}

	prof, outcome := f.resolver.Resolve(context.Background(), "7", models.ProfileHints{})
	assert.Equal(t, OutcomeRecovered, outcome)
	assert.Equal(t, "7", prof.UserID)
	require.NotNil(t, prof.AvatarURL)
	assert.Equal(t, "https://real-cdn/y.png", *prof.AvatarURL)
}

func TestResolve_TieBreakAndGapFill(t *testing.T) {
	f := newResolverFixture(t, nil)
	f.global.docs["3"] = bson.M{"user_id": "3", "first_name": "Global", "username": "g_user"}
	f.legacyA.docs["3"] = bson.M{"id": int64(3), "first_name": "Legacy", "photo_url": "https://cdn.example.com/l.png"}
	f.legacyB.docs["3"] = bson.M{"id": int64(3), "first_name": "Later", "photo_url": "https://cdn.example.com/later.png"}

	prof, outcome := f.resolver.Resolve(context.Background(), "3", models.ProfileHints{})
	assert.Equal(t, OutcomeRecovered, outcome)
	assert.Equal(t, "Legacy", prof.DisplayName, "first candidate with avatar and name wins")
	assert.Equal(t, "https://cdn.example.com/l.png", *prof.AvatarURL)
	assert.Equal(t, "g_user", *prof.Username, "username filled from another candidate")
}

func TestResolve_NeverDowngradesStoredAvatar(t *testing.T) {
	f := newResolverFixture(t, nil)
	f.primary.docs["5"] = bson.M{"user_id": "5", "photo_url": "https://cdn.example.com/keep.png"}
	f.global.docs["5"] = bson.M{"user_id": "5", "first_name": "Neo", "photo_url": "https://picsum.photos/100"}

	prof, _ := f.resolver.Resolve(context.Background(), "5", models.ProfileHints{
		AvatarURL: strp("https://picsum.photos/200"),
	})
	require.NotNil(t, prof.AvatarURL)
	assert.Equal(t, "https://cdn.example.com/keep.png", *prof.AvatarURL)
	assert.Equal(t, "Neo", prof.DisplayName)

	f.sync.Wait()
	assert.Equal(t, "https://cdn.example.com/keep.png", f.primary.docs["5"]["photo_url"])
}

func TestResolve_HintsOverride(t *testing.T) {
	f := newResolverFixture(t, nil)
	f.primary.docs["9"] = bson.M{
		"user_id":   "9",
		"firstname": "Stored",
		"username":  "stored",
		"photo_url": "https://cdn.example.com/old.png",
	}

	prof, outcome := f.resolver.Resolve(context.Background(), "9", models.ProfileHints{
		DisplayName: strp("Fresh"),
		Username:    strp("fresh"),
		AvatarURL:   strp("https://cdn.example.com/new.png"),
	})
	assert.Equal(t, OutcomeFound, outcome)
	assert.Equal(t, "Fresh", prof.DisplayName)
	assert.Equal(t, "fresh", *prof.Username)
	assert.Equal(t, "https://cdn.example.com/new.png", *prof.AvatarURL)

	f.sync.Wait()
	stored := f.primary.docs["9"]
	assert.Equal(t, "Fresh", stored["firstname"])
	assert.Equal(t, "https://cdn.example.com/new.png", stored["photo_url"])
}

func TestResolve_IsIdempotent(t *testing.T) {
	f := newResolverFixture(t, nil)
	f.global.docs["77"] = bson.M{"user_id": "77", "first_name": "Kai", "username": "kai"}
	f.legacyA.docs["77"] = bson.M{"id": "77", "img": "https://cdn.example.com/kai.webp"}

	first, _ := f.resolver.Resolve(context.Background(), "77", models.ProfileHints{})
	f.sync.Wait()
	second, _ := f.resolver.Resolve(context.Background(), "77", models.ProfileHints{})

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second resolution differs (-first +second):\n%s", diff)
	}
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Nil(t, second.UpdatedAt)
}

func TestResolve_SourceFailuresAreSwallowed(t *testing.T) {
	f := newResolverFixture(t, nil)
	down := errors.Join(ErrSourceUnavailable, errors.New("connection refused"))
	f.primary.err = down
	f.global.err = down
	f.legacyA.docs["4"] = bson.M{"id": "4", "first_name": "Survivor"}
	f.legacyB.err = down

	prof, outcome := f.resolver.Resolve(context.Background(), "4", models.ProfileHints{})
	assert.Equal(t, OutcomeRecovered, outcome)
	assert.Equal(t, "Survivor", prof.DisplayName)
}

func TestResolve_EverySourceDown(t *testing.T) {
	f := newResolverFixture(t, nil)
	for _, src := range []*fakeSource{f.primary.fakeSource, f.global, f.legacyA, f.legacyB} {
		src.err = ErrSourceUnavailable
	}

	prof, outcome := f.resolver.Resolve(context.Background(), "4", models.ProfileHints{
		DisplayName: strp("FromToken"),
	})
	assert.Equal(t, OutcomeUnavailable, outcome)
	assert.Equal(t, models.Profile{UserID: "4", DisplayName: "FromToken"}, prof)
}

func TestResolve_DefaultNameIsNotAName(t *testing.T) {
	f := newResolverFixture(t, nil)
	f.primary.docs["6"] = bson.M{"user_id": "6", "firstname": "Traveler", "photo_url": "https://cdn.example.com/6.png"}
	f.global.docs["6"] = bson.M{"user_id": "6", "first_name": "Real Name"}

	prof, outcome := f.resolver.Resolve(context.Background(), "6", models.ProfileHints{})
	assert.Equal(t, OutcomeRecovered, outcome)
	assert.Equal(t, "Real Name", prof.DisplayName)
	assert.Equal(t, "https://cdn.example.com/6.png", *prof.AvatarURL)
}

func TestPreview_DoesNotPersist(t *testing.T) {
	f := newResolverFixture(t, nil)
	f.global.docs["8"] = bson.M{"user_id": "8", "first_name": "Ghost"}

	prof, outcome := f.resolver.Preview(context.Background(), "8")
	assert.Equal(t, OutcomeRecovered, outcome)
	assert.Equal(t, "Ghost", prof.DisplayName)
	f.sync.Wait()
	assert.Empty(t, f.primary.Upserts())
}
