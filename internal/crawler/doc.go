// Package crawler implements the font crawl traversal engine: the visited
// ledger, the breadth-first and depth-first frontiers, page-limit enforcement,
// per-page failure handling, the discovery seeder, and font-family
// normalization. Browser automation is reached only through the ports in
// interfaces.go so the engine can be exercised with fakes.
package crawler
