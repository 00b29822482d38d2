package security

import (
	"crypto/md5"
	"encoding/hex"
)

// Md5 计算字符串的md5值，用于jwt黑名单等场景的key缩短
func Md5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
