/*
Package session implements session management and persistence orchestration.

It provides high-level abstractions for handling concurrent access to sessions
across multiple replicas, combining in-process mutexes with distributed locking
and long-term storage adapters.
*/
package session
