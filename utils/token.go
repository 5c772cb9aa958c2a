package utils

import (
	"errors"
	"sync"
	"time"
)

var (
	blacklistedTokens = make(map[string]time.Time)
	blacklistMutex    sync.RWMutex
)

// BlacklistToken keeps a token rejected for 24 hours, which covers the
// lifetime of tokens issued by GenerateToken.
func BlacklistToken(token string) {
	blacklistMutex.Lock()
	defer blacklistMutex.Unlock()
	blacklistedTokens[token] = time.Now().Add(24 * time.Hour)
}

func IsTokenBlacklisted(token string) bool {
	blacklistMutex.RLock()
	defer blacklistMutex.RUnlock()
	expiry, exists := blacklistedTokens[token]
	return exists && time.Now().Before(expiry)
}

// ValidateToken rejects blacklisted tokens before parsing.
func ValidateToken(tokenString string) (*CustomClaims, error) {
	if IsTokenBlacklisted(tokenString) {
		return nil, errors.New("token has been revoked")
	}
	return ParseToken(tokenString)
}

// StartBlacklistCleanup prunes expired blacklist entries hourly.
func StartBlacklistCleanup() {
	go func() {
		for {
			time.Sleep(1 * time.Hour)
			blacklistMutex.Lock()
			now := time.Now()
			for token, expiry := range blacklistedTokens {
				if now.After(expiry) {
					delete(blacklistedTokens, token)
				}
			}
			blacklistMutex.Unlock()
		}
	}()
}
