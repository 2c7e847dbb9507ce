package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

var privateNets = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "127.0.0.0/8", "::1/128", "fc00::/7"} {
		_, n, _ := net.ParseCIDR(cidr)
		nets = append(nets, n)
	}
	return nets
}()

func isPrivateIP(ip net.IP) bool {
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the caller's address for logs. Behind the ingress proxy the
// first public address in X-Real-IP or X-Forwarded-For wins; otherwise gin's view.
func ClientIP(c *gin.Context) string {
	if real := strings.TrimSpace(c.GetHeader("X-Real-IP")); real != "" {
		if ip := net.ParseIP(real); ip != nil && !isPrivateIP(ip) {
			return real
		}
	}

	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ",") {
			candidate := strings.TrimSpace(part)
			if ip := net.ParseIP(candidate); ip != nil && !isPrivateIP(ip) {
				return candidate
			}
		}
	}

	return c.ClientIP()
}
