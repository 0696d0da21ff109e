package util

import (
	"net/url"
)

// MaskURLPassword replaces the password of a connection URL with "***"
// MaskURLPassword 将连接地址中的密码替换为 "***"
// Unparseable input is returned as "<invalid url>" so secrets never leak into logs
// 无法解析的地址返回 "<invalid url>"
func MaskURLPassword(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	if u.User == nil {
		return u.String()
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
