// Package search provides SearchProvider implementations for multistep answer engines.
//
// Available providers:
//
//   - DuckDuckGo: Free, no API key required (uses HTML scraping of lite.duckduckgo.com)
//   - Brave: Requires API key via X-Subscription-Token header
//   - Tavily: Requires API key, supports basic/advanced depth modes
//   - Mongo: Text-index retrieval over a MongoDB collection of passages
//
// HTTP providers back off and retry when the backend answers 429. Other
// non-200 responses are returned as *StatusError.
//
// # DuckDuckGo Example
//
//	provider := search.NewDuckDuckGo()
//	results, err := provider.Search(ctx, "golang web frameworks")
//
// # Brave Example
//
//	provider := search.NewBrave("your-api-key")
//	results, err := provider.Search(ctx, "best practices for API design")
//
// # Tavily Example
//
//	provider := search.NewTavily("your-api-key", "advanced")
//	results, err := provider.Search(ctx, "climate change research 2024")
//
// # Mongo Example
//
//	provider, err := search.NewMongo(search.MongoOptions{Collection: client.Database("kb").Collection("passages")})
//	results, err := provider.Search(ctx, "who founded the accelerator")
//
// The collection needs a text index on the content field.
package search
