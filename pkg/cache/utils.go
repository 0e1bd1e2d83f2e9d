package cache

import "fmt"

// GenerateKey joins a prefix and id with a colon.
func GenerateKey(prefix string, id string) string {
	if prefix == "" {
		return id
	}
	return prefix + ":" + id
}

// GenerateKeyWithParams appends every param to prefix, colon separated.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, param := range params {
		key = fmt.Sprintf("%s:%v", key, param)
	}
	return key
}
