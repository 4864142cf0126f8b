// Package cache holds the two in-memory lookup tables the proxy learns while
// serving metadata responses: the set of recently seen access tokens and the
// media part index mapping a part request path to the file the origin reports
// for it. Both tables are safe for concurrent use and each carries its own
// RWMutex; callers never need to hold both at once.
package cache
