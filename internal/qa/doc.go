// Package qa generates questions and answers for text chunks.
//
// Prompts live in an embedded YAML document with English ("en") and Chinese
// ("zh") variants and are rendered with text/template. A custom prompt file
// with the same layout can replace any language:
//
//	languages:
//	  en:
//	    question:
//	      system: You write exam questions.
//	      user: |
//	        Write {{.MaxQuestions}} questions about:
//	        {{.Text}}
//	    answer:
//	      user: |
//	        {{.Text}}
//	        Q: {{.Question}}
//
// Replies are parsed leniently: code fences and surrounding prose are
// stripped, and questions may come as a bare array or wrapped in
// {"questions": [...]}.
package qa
