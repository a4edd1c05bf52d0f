package bboltx

import "go.etcd.io/bbolt"

// BucketParent is an interface for things that contain buckets, namely
// *bbolt.Tx and *bbolt.Bucket.
type BucketParent interface {
	CreateBucketIfNotExists([]byte) (*bbolt.Bucket, error)
	Bucket([]byte) *bbolt.Bucket
}

// CreateBucketIfNotExists returns the bucket nested within p at the given
// path, creating any missing buckets along the way.
func CreateBucketIfNotExists(p BucketParent, path ...[]byte) *bbolt.Bucket {
	if len(path) == 0 {
		panic("at least one path element must be provided")
	}

	var b *bbolt.Bucket
	for _, name := range path {
		var err error
		b, err = p.CreateBucketIfNotExists(name)
		Must(err)
		p = b
	}

	return b
}

// TryBucket returns the bucket nested within p at the given path.
//
// ok is false if any of the buckets on the path does not exist.
func TryBucket(p BucketParent, path ...[]byte) (b *bbolt.Bucket, ok bool) {
	for _, name := range path {
		if b = p.Bucket(name); b == nil {
			return nil, false
		}
		p = b
	}

	return b, b != nil
}

// GetPath returns the value of the key at the end of path. The preceding
// elements are the names of the nested buckets that contain it.
//
// It returns nil if the key or any of the buckets does not exist.
func GetPath(p BucketParent, path ...[]byte) []byte {
	buckets, key := splitPath(path)

	if b, ok := TryBucket(p, buckets...); ok {
		return b.Get(key)
	}

	return nil
}

// PutPath sets the key at the end of path to v, creating the buckets named by
// the preceding elements as necessary.
func PutPath(p BucketParent, v []byte, path ...[]byte) {
	buckets, key := splitPath(path)

	b := CreateBucketIfNotExists(p, buckets...)
	Must(b.Put(key, v))
}

// DeletePath deletes the key (or bucket) at the end of path. Any buckets on
// the path that are left empty are also deleted.
func DeletePath(p BucketParent, path ...[]byte) {
	buckets, key := splitPath(path)

	b, ok := TryBucket(p, buckets...)
	if !ok {
		return
	}

	if b.Bucket(key) != nil {
		Must(b.DeleteBucket(key))
	} else {
		Must(b.Delete(key))
	}

	// Walk back up the path, removing each bucket that is now empty.
	for n := len(buckets); n > 1; n-- {
		parent, _ := TryBucket(p, buckets[:n-1]...)
		name := buckets[n-1]

		if k, _ := parent.Bucket(name).Cursor().First(); k != nil {
			return
		}

		Must(parent.DeleteBucket(name))
	}
}

// splitPath splits path into the bucket names and the key.
func splitPath(path [][]byte) ([][]byte, []byte) {
	n := len(path) - 1
	if n < 1 {
		panic("at least two path elements must be provided")
	}

	return path[:n], path[n]
}
