// Command fontcrawler serves the font crawling API and runs one-shot crawls.
package main

func main() {
	Execute()
}
