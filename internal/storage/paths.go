package storage

import "path"

const (
	usersRoot = "users"
	cacheRoot = "cache"
)

// UsersPrefix is the prefix under which every per-user document lives.
const UsersPrefix = usersRoot + "/"

func userKey(userID string, parts ...string) string {
	return path.Join(append([]string{usersRoot, userID}, parts...)...)
}

func ProfileKey(userID string) string       { return userKey(userID, "profile.json") }
func SettingsKey(userID string) string      { return userKey(userID, "settings.json") }
func SearchConfigsKey(userID string) string { return userKey(userID, "search-configs.json") }
func JobIndexKey(userID string) string      { return userKey(userID, "jobs", "index.json") }
func JobKey(userID, jobID string) string    { return userKey(userID, "jobs", jobID+".json") }

func ApplicationIndexKey(userID string) string { return userKey(userID, "applications", "index.json") }

func ApplicationKey(userID, applicationID string) string {
	return userKey(userID, "applications", applicationID+".json")
}

func DocumentIndexKey(userID string) string { return userKey(userID, "documents", "index.json") }

// ScreenshotKey names a stage screenshot of an application attempt.
func ScreenshotKey(userID, applicationID, stage string) string {
	return userKey(userID, "screenshots", applicationID+"-"+stage+".png")
}

// CacheKey places shared adapter caches outside of user space.
func CacheKey(parts ...string) string {
	return path.Join(append([]string{cacheRoot}, parts...)...)
}
