/*
Package tokencache stores one token record per signed-in user.

A Record is created when an authorization code is exchanged, replaced in
place on every successful refresh, and deleted on sign out. Records are
treated as expired SafetyMargin (5 minutes) before the provider says they are,
which absorbs clock skew and request latency.

Two implementations of the Cache interface are provided:

* FileCache persists the whole collection as one JSON array. Every operation
reloads the document, mutates one record and rewrites the document. There is
no locking across requests or processes, so two overlapping writers race and
the last one wins.

* MemoryCache keeps the same snapshot semantics in process and is intended for
tests and short-lived tools.
*/
package tokencache
