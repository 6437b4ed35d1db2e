package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// BytesMD5 计算字节数组MD5
func BytesMD5(data []byte) string {
	hash := md5.New()
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))
}

// CacheKey 由图片和掩码内容生成缓存键，无掩码时使用 auto 后缀
func CacheKey(image, mask []byte) string {
	if len(mask) == 0 {
		return BytesMD5(image) + ":auto"
	}
	return BytesMD5(image) + ":" + BytesMD5(mask)
}
