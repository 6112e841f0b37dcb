//go:build memkit_release

package crash

// Checks enables hot-path bounds checks in Array, Pool and Stream.
const Checks = false
