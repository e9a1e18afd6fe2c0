package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LocalhostOnly admits loopback callers and the configured IPs or CIDR ranges.
// Client IPs come from c.ClientIP(), so trusted proxies must be set on the engine.
type LocalhostOnly struct {
	logger   *logrus.Logger
	ips      []net.IP
	networks []*net.IPNet
}

// NewLocalhostOnly parses allowedIPs once; invalid entries are logged and skipped
func NewLocalhostOnly(logger *logrus.Logger, allowedIPs []string) *LocalhostOnly {
	l := &LocalhostOnly{logger: logger}
	for _, allowed := range allowedIPs {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if strings.Contains(allowed, "/") {
			_, ipNet, err := net.ParseCIDR(allowed)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"allowed": allowed,
					"error":   err.Error(),
				}).Warn("Invalid CIDR in allowedIPs")
				continue
			}
			l.networks = append(l.networks, ipNet)
			continue
		}
		if ip := net.ParseIP(allowed); ip != nil {
			l.ips = append(l.ips, ip)
		} else {
			logger.WithField("allowed", allowed).Warn("Invalid IP in allowedIPs")
		}
	}
	return l
}

// Restrict rejects callers outside the allowlist
func (l *LocalhostOnly) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !l.isAllowedIP(clientIP) {
			l.logger.WithFields(logrus.Fields{
				"client_ip":  clientIP,
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
				"user_agent": c.GetHeader("User-Agent"),
			}).Warn("Reject non-whitelisted access to sensitive API")

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "This API is only accessible from allowed IP addresses",
				"code":    "IP_NOT_ALLOWED",
			})
			return
		}
		c.Next()
	}
}

func isLocalhost(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip == "localhost"
	}
	return parsed.IsLoopback()
}

func (l *LocalhostOnly) isAllowedIP(ip string) bool {
	if isLocalhost(ip) {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, allowed := range l.ips {
		if allowed.Equal(parsed) {
			return true
		}
	}
	for _, network := range l.networks {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}
