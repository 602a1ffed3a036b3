// Package headless implements the crawler's page fetch port with a real
// headless Chrome driven through chromedp. Pages are rendered with JavaScript
// so computed font-family values reflect what a visitor actually sees.
package headless
