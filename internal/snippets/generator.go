package snippets

import (
	"bytes"
	"strings"
	"text/template"
)

type Framework string

const (
	FrameworkHTML    Framework = "html"
	FrameworkNextJS  Framework = "nextjs"
	FrameworkReact   Framework = "react"
	FrameworkVue     Framework = "vue"
	FrameworkSvelte  Framework = "svelte"
	FrameworkLaravel Framework = "laravel"
	FrameworkDjango  Framework = "django"
)

type Config struct {
	ServerURL string
	// ConversionID is used in the example conversion call.
	ConversionID string
}

type SnippetFile struct {
	Filename string
	Content  string
}

type templateData struct {
	ServerURL    string
	ConversionID string
}

func Generate(framework Framework, config Config) ([]SnippetFile, error) {
	data := buildTemplateData(config)

	switch framework {
	case FrameworkHTML:
		return generateHTML(data)
	case FrameworkReact:
		return generateReact(data)
	case FrameworkNextJS:
		return generateNextJS(data)
	case FrameworkVue:
		return generateVue(data)
	case FrameworkSvelte:
		return generateSvelte(data)
	case FrameworkLaravel:
		return generateLaravel(data)
	case FrameworkDjango:
		return generateDjango(data)
	default:
		return generateHTML(data)
	}
}

func buildTemplateData(config Config) templateData {
	conversionID := config.ConversionID
	if conversionID == "" {
		conversionID = "signup"
	}
	return templateData{
		ServerURL:    strings.TrimRight(config.ServerURL, "/"),
		ConversionID: conversionID,
	}
}

func renderTemplate(name, content string, data templateData) (string, error) {
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func render(files map[string]string, order []string, data templateData) ([]SnippetFile, error) {
	out := make([]SnippetFile, 0, len(order))
	for _, name := range order {
		rendered, err := renderTemplate(name, files[name], data)
		if err != nil {
			return nil, err
		}
		out = append(out, SnippetFile{Filename: name, Content: rendered})
	}
	return out, nil
}

const markupExample = `<!-- Declarative tracking -->
<a href="/signup" data-fg-cta="nav-signup">Sign up</a>
<button data-fg-hero="start_trial">Start free trial</button>
<pre data-fg-copy="install">npm install ...</pre>
`

func generateHTML(data templateData) ([]SnippetFile, error) {
	content := `<!-- funnel-goat: attribution and funnel tracking -->
<script src="{{.ServerURL}}/fg.js" defer></script>

` + markupExample + `
<!-- Report a conversion -->
<script>
  document.querySelector('form').addEventListener('submit', function () {
    window.fg && window.fg.conversion('{{.ConversionID}}');
  });
</script>
`
	return render(map[string]string{"funnel-goat.html": content}, []string{"funnel-goat.html"}, data)
}

const reactHook = `declare global {
  interface Window {
    fg?: {
      track(name: string, category?: string, properties?: Record<string, string | number | boolean>): void;
      conversion(id: string, value?: number): void;
    };
  }
}

export function useFunnelGoat() {
  return {
    track: (name: string, category?: string, properties?: Record<string, string | number | boolean>) =>
      window.fg?.track(name, category, properties),
    conversion: (id: string, value?: number) => window.fg?.conversion(id, value),
  };
}
`

func generateReact(data templateData) ([]SnippetFile, error) {
	files := map[string]string{
		"useFunnelGoat.ts": reactHook,
		"FunnelGoatScript.tsx": `import { useEffect } from 'react';

const SERVER_URL = '{{.ServerURL}}';

// Mount once at the root of the app.
export function FunnelGoatScript() {
  useEffect(() => {
    if (document.querySelector('script[data-fg]')) return;
    const s = document.createElement('script');
    s.src = SERVER_URL + '/fg.js';
    s.defer = true;
    s.dataset.fg = '';
    document.head.appendChild(s);
  }, []);
  return null;
}
`,
		"usage.tsx": `import { FunnelGoatScript } from './FunnelGoatScript';
import { useFunnelGoat } from './useFunnelGoat';

export function Pricing() {
  const { conversion } = useFunnelGoat();
  return (
    <>
      <FunnelGoatScript />
      <button data-fg-cta="pricing-pro" onClick={() => conversion('{{.ConversionID}}', 49)}>
        Buy Pro
      </button>
    </>
  );
}
`,
	}
	return render(files, []string{"FunnelGoatScript.tsx", "useFunnelGoat.ts", "usage.tsx"}, data)
}

func generateNextJS(data templateData) ([]SnippetFile, error) {
	files := map[string]string{
		"useFunnelGoat.ts": reactHook,
		"layout.tsx": `import Script from 'next/script';

export default function RootLayout({ children }: { children: React.ReactNode }) {
  return (
    <html lang="en">
      <body>
        {children}
        <Script src="{{.ServerURL}}/fg.js" strategy="afterInteractive" />
      </body>
    </html>
  );
}
`,
	}
	return render(files, []string{"layout.tsx", "useFunnelGoat.ts"}, data)
}

func generateVue(data templateData) ([]SnippetFile, error) {
	files := map[string]string{
		"funnel-goat.ts": `import type { App } from 'vue';

const SERVER_URL = '{{.ServerURL}}';

export default {
  install(app: App) {
    const s = document.createElement('script');
    s.src = SERVER_URL + '/fg.js';
    s.defer = true;
    document.head.appendChild(s);
    app.config.globalProperties.$fg = {
      conversion: (id: string, value?: number) => (window as any).fg?.conversion(id, value),
    };
  },
};
`,
		"Pricing.vue": `<template>
  <button data-fg-cta="pricing-pro" @click="$fg.conversion('{{.ConversionID}}')">Buy Pro</button>
</template>
`,
	}
	return render(files, []string{"funnel-goat.ts", "Pricing.vue"}, data)
}

func generateSvelte(data templateData) ([]SnippetFile, error) {
	files := map[string]string{
		"+layout.svelte": `<svelte:head>
  <script src="{{.ServerURL}}/fg.js" defer></script>
</svelte:head>

<slot />
`,
		"Pricing.svelte": `<button data-fg-cta="pricing-pro" on:click={() => window.fg?.conversion('{{.ConversionID}}')}>
  Buy Pro
</button>
`,
	}
	return render(files, []string{"+layout.svelte", "Pricing.svelte"}, data)
}

func generateLaravel(data templateData) ([]SnippetFile, error) {
	content := `{{"{{"}}-- resources/views/layouts/app.blade.php --{{"}}"}}
<script src="{{.ServerURL}}/fg.js" defer></script>

` + markupExample
	return render(map[string]string{"funnel-goat.blade.php": content}, []string{"funnel-goat.blade.php"}, data)
}

func generateDjango(data templateData) ([]SnippetFile, error) {
	content := `{# templates/base.html #}
<script src="{{.ServerURL}}/fg.js" defer></script>

` + markupExample
	return render(map[string]string{"funnel-goat.html": content}, []string{"funnel-goat.html"}, data)
}

// AllFrameworks returns all supported frameworks
func AllFrameworks() []Framework {
	return []Framework{
		FrameworkHTML,
		FrameworkNextJS,
		FrameworkReact,
		FrameworkVue,
		FrameworkSvelte,
		FrameworkLaravel,
		FrameworkDjango,
	}
}
