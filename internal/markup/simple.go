package markup

import (
	"regexp"
	"strings"
)

type substitution struct {
	re   *regexp.Regexp
	repl string
}

func sub(pattern, repl string) substitution {
	return substitution{re: regexp.MustCompile(pattern), repl: repl}
}

// simpleRules run in order. Each rule sees the output of the previous one.
var simpleRules = []substitution{
	sub(`(?is)<h1\b[^>]*>(.*?)</h1>`, "# ${1}\n"),
	sub(`(?is)<h2\b[^>]*>(.*?)</h2>`, "## ${1}\n"),
	sub(`(?is)<h3\b[^>]*>(.*?)</h3>`, "### ${1}\n"),
	sub(`(?is)<h4\b[^>]*>(.*?)</h4>`, "#### ${1}\n"),
	sub(`(?is)<h5\b[^>]*>(.*?)</h5>`, "##### ${1}\n"),
	sub(`(?is)<h6\b[^>]*>(.*?)</h6>`, "###### ${1}\n"),

	sub(`(?is)<strong\b[^>]*>(.*?)</strong>`, "**${1}**"),
	sub(`(?is)<b\b[^>]*>(.*?)</b>`, "**${1}**"),
	sub(`(?is)<em\b[^>]*>(.*?)</em>`, "*${1}*"),
	sub(`(?is)<i\b[^>]*>(.*?)</i>`, "*${1}*"),

	sub(`(?is)<pre\b[^>]*>\s*<code\b[^>]*>(.*?)</code>\s*</pre>`, "```\n${1}\n```"),
	sub(`(?is)<code\b[^>]*>(.*?)</code>`, "`${1}`"),

	sub(`(?is)<a\b[^>]*href="([^"]*)"[^>]*>(.*?)</a>`, "[${2}](${1})"),

	sub(`(?is)<li\b[^>]*>(.*?)</li>`, "- ${1}\n"),
	sub(`(?is)<ul\b[^>]*>(.*?)</ul>`, "${1}"),
	sub(`(?is)<ol\b[^>]*>(.*?)</ol>`, "${1}"),

	sub(`(?is)<p\b[^>]*>(.*?)</p>`, "${1}\n\n"),
	sub(`(?i)<br\b[^>]*>`, "\n"),

	sub(`<[^>]+>`, ""),
}

// entities are decoded in one pass so "&amp;lt;" becomes "&lt;", not "<".
var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// Simple converts HTML with an ordered list of pattern substitutions and no
// parsing. It handles headings, emphasis, code, links, lists, paragraphs and
// line breaks, strips every other tag, and decodes the five common entities
// plus &nbsp;. Ordered lists come out as "-" bullets.
func Simple(input string) string {
	if input == "" {
		return ""
	}
	md := input
	for _, r := range simpleRules {
		md = r.re.ReplaceAllString(md, r.repl)
	}
	md = entities.Replace(md)
	md = newlineRun.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}
