// Package hasher 将任意缓存 key 映射为定长、文件系统安全的十六进制文件名。
package hasher

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Algorithm 标识 key → 文件名所用的哈希算法。
type Algorithm string

const (
	// AlgorithmXXHash64 为默认算法：带种子的 XXH64，输出 16 位十六进制。
	AlgorithmXXHash64 Algorithm = "xxhash64"
	// AlgorithmSHA256 供需要抗碰撞保证的场景使用，输出 64 位十六进制。
	AlgorithmSHA256 Algorithm = "sha256"
)

// DefaultSeed 在未配置 HashSeed 时使用。修改种子会让已有缓存文件全部失效（不可达，但不会损坏）。
const DefaultSeed uint64 = 0xCAFEBABE

// Hasher 是纯函数式的 key 哈希器，可并发使用。
type Hasher struct {
	seed uint64
	algo Algorithm
}

// New 按算法与种子构建 Hasher；空算法视为 xxhash64。
func New(seed uint64, algo Algorithm) (*Hasher, error) {
	switch normalized := Algorithm(strings.ToLower(strings.TrimSpace(string(algo)))); normalized {
	case "", AlgorithmXXHash64:
		return &Hasher{seed: seed, algo: AlgorithmXXHash64}, nil
	case AlgorithmSHA256:
		return &Hasher{seed: seed, algo: AlgorithmSHA256}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// Hash 返回 key 对应的小写十六进制文件名。
func (h *Hasher) Hash(key string) string {
	if h.algo == AlgorithmSHA256 {
		var seed [8]byte
		binary.LittleEndian.PutUint64(seed[:], h.seed)
		sum := sha256.New()
		sum.Write(seed[:])
		sum.Write([]byte(key))
		return hex.EncodeToString(sum.Sum(nil))
	}

	d := xxhash.NewWithSeed(h.seed)
	_, _ = d.WriteString(key)
	return fmt.Sprintf("%016x", d.Sum64())
}

// Algorithm 返回当前生效的算法。
func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

// Width 返回输出文件名的固定长度。
func (h *Hasher) Width() int {
	if h.algo == AlgorithmSHA256 {
		return sha256.Size * 2
	}
	return 16
}

// ParseSeed 支持整数（十进制或 0x 十六进制）与任意字符串两种写法；
// 字符串种子通过无种子 XXH64 折叠为 uint64，空值回退至 DefaultSeed。
func ParseSeed(raw string) uint64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSeed
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		if v, err := strconv.ParseUint(raw[2:], 16, 64); err == nil {
			return v
		}
	} else if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return v
	}
	return xxhash.Sum64String(raw)
}
