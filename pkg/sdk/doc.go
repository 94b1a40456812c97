// Package shelf embeds the catalog search engine in-process.
//
// A Client ingests a delimited-text product catalog from a file or URL,
// builds a fuzzy index over it on a background actor and answers queries
// with price filtering and sorting. Nothing leaves the process.
//
//	client, _ := shelf.New(ctx, shelf.WithFile("data/products.csv"))
//	defer client.Close()
//	_ = client.Load(ctx)
//	res, _ := client.Search().Query("shoe").PriceRange(10, 60).Sort(shelf.PriceAsc).Do(ctx)
//	for _, p := range res.Products {
//	    fmt.Println(p.Title, p.Price)
//	}
//
// Load may be called again at any time to replace the catalog; searches
// issued while a rebuild runs are answered once the new index is ready.
package shelf
