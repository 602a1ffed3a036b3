package headless

import (
	"encoding/json"
	"fmt"
)

// fontScript returns the font-family of every element under <body>, preferring
// the inline style over the computed one.
const fontScript = `(() => {
  const out = [];
  for (const node of document.body ? document.body.getElementsByTagName("*") : []) {
    if (!node.style) continue;
    const family = node.style.fontFamily || getComputedStyle(node).getPropertyValue("font-family");
    if (family) out.push(family);
  }
  return out;
})()`

// linkScript returns the resolved href of every anchor in the document.
const linkScript = `Array.from(document.querySelectorAll("a[href]")).map(a => a.href)`

// previewScript builds the expression collecting hrefs for selector.
func previewScript(selector string) string {
	quoted, err := json.Marshal(selector)
	if err != nil {
		quoted = []byte(`""`)
	}
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(a => a.href).filter(Boolean)`, quoted)
}
