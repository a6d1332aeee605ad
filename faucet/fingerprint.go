// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package faucet

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// Fingerprint derives the device bucket for a scan from coarse request
// attributes: the network the request came from, the client family, and
// the primary locale. It is intentionally lossy. Distinct people behind
// the same network with the same kind of client share a bucket; no single
// person is identifiable from it.
func Fingerprint(r *http.Request) string {
	h := sha256.New()
	h.Write([]byte(originPrefix(remoteIP(r))))
	h.Write([]byte{0})
	h.Write([]byte(clientFamily(r.UserAgent())))
	h.Write([]byte{0})
	h.Write([]byte(primaryLocale(r.Header.Get("Accept-Language"))))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func remoteIP(r *http.Request) string {
	// trust the nearest proxy header when present
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// originPrefix truncates the address to a network-sized bucket: /16 for
// IPv4, /48 for IPv6.
func originPrefix(addr string) string {
	ip := net.ParseIP(addr)
	if ip == nil {
		return "unknown"
	}
	if v4 := ip.To4(); v4 != nil {
		return (&net.IPNet{IP: v4.Mask(net.CIDRMask(16, 32)), Mask: net.CIDRMask(16, 32)}).String()
	}
	return (&net.IPNet{IP: ip.Mask(net.CIDRMask(48, 128)), Mask: net.CIDRMask(48, 128)}).String()
}

func clientFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "bot"), strings.Contains(ua, "crawler"), strings.Contains(ua, "spider"):
		return "bot"
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		return "mobile"
	default:
		return "desktop"
	}
}

func primaryLocale(acceptLanguage string) string {
	if acceptLanguage == "" {
		return "unknown"
	}
	lang := acceptLanguage
	if i := strings.IndexAny(lang, ",;"); i >= 0 {
		lang = lang[:i]
	}
	// keep only the language part, not the region
	if i := strings.IndexByte(lang, '-'); i >= 0 {
		lang = lang[:i]
	}
	return strings.ToLower(strings.TrimSpace(lang))
}
