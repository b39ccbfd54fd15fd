package mpq

import (
	"crypto/md5"
	"encoding/binary"
	"hash/crc32"
)

func crc32Append(buf []byte, data []byte) []byte {
	v := crc32.ChecksumIEEE(data)
	tail := make([]byte, 4)
	binary.LittleEndian.PutUint32(tail, v)
	return append(buf, tail...)
}

func md5Append(buf []byte, data []byte) []byte {
	sum := md5.Sum(data)
	return append(buf, sum[:]...)
}
