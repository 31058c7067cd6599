// Package redislist stores sequences as Redis lists.
//
// Each element is one list entry holding a JSON document, so nested
// sequences are stored as JSON arrays inside a single entry. Loading reads
// the list page by page with LRANGE. LLEN is reported as the size hint; the
// list may change between LLEN and the last page, so the hint is only ever
// used through the cautious reservation policy.
//
//	store := redislist.New(rdb, redislist.Options{PageSize: 512})
//	if err := store.Save(ctx, "scores", v); err != nil { ... }
//	var out vc.Vc[int64]
//	if err := store.Load(ctx, "scores", &out); err != nil { ... }
package redislist
