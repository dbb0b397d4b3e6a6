package core

import (
	"fmt"
	"hash/fnv"
)

func Hash(value string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(value))
	return hash.Sum32()
}

// Partition assigns key to one of numPartitions buckets by hashing its %v
// rendering.
func Partition[K any](key K, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	return int(Hash(fmt.Sprint(key)) % uint32(numPartitions))
}
