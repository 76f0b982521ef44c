package cache

import (
	"fmt"
	"strings"
	"time"
)

const (
	userProfileKeyPrefix = "user:profile:%s"

	// UserProfileTTL bounds how stale a cached profile's posts_count can get.
	UserProfileTTL = 5 * time.Minute
)

// UserProfileKey is the cache key of a public profile. Usernames are matched
// case-sensitively by the database, so the key keeps the case too.
func UserProfileKey(username string) string {
	return fmt.Sprintf(userProfileKeyPrefix, strings.TrimSpace(username))
}
