package server

import (
	"fmt"
	"net/http"
)

// handleGlobalJS serves the fg.js client script
func (s *Server) handleGlobalJS(w http.ResponseWriter, r *http.Request) {
	// Determine server URL from request
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	script := GenerateGlobalScript(serverURL)

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(script))
}

// GenerateGlobalScript generates the fg.js script with the given server URL
func GenerateGlobalScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';

  // Visitor ID survives the browser; session ID lives as long as the tab
  function id(store,key){
    var v=null;
    try{
      v=store.getItem(key);
      if(!v){v=crypto.randomUUID();store.setItem(key,v);}
    }catch(e){
      v=v||Math.random().toString(36).slice(2);
    }
    return v;
  }
  var vid=id(localStorage,'fg_vid');
  var sid=id(sessionStorage,'fg_sid');

  function send(path,body){
    body.vid=vid;body.sid=sid;
    var data=JSON.stringify(body);
    try{
      if(navigator.sendBeacon&&navigator.sendBeacon(S+path,data))return;
      fetch(S+path,{method:'POST',body:data,keepalive:true}).catch(function(){});
    }catch(e){}
  }

  // Report every navigation, including client-side route changes
  var last=null;
  function nav(force){
    var a=location.pathname+location.search;
    if(!force&&a===last)return;
    last=a;
    send('/nav',{address:a,title:document.title});
  }
  var push=history.pushState;
  history.pushState=function(){var r=push.apply(this,arguments);nav(true);return r;};
  var replace=history.replaceState;
  history.replaceState=function(){var r=replace.apply(this,arguments);nav(false);return r;};
  window.addEventListener('popstate',function(){nav(true);});

  function track(name,category,props){
    if(!name)return;
    send('/e',{name:name,category:category||'',properties:props||{}});
  }
  function conversion(id,value){
    var b={id:id};
    if(typeof value==='number')b.value=value;
    send('/conversion',b);
  }

  // Declarative tracking
  document.addEventListener('click',function(e){
    var el=e.target&&e.target.closest&&e.target.closest('[data-fg-cta],[data-fg-hero],[data-fg-copy]');
    if(!el)return;
    var d=el.dataset;
    if(d.fgCta!==undefined)track('cta_click','conversion',{elementId:d.fgCta||el.id});
    if(d.fgHero!==undefined)track('hero_cta_click','',{action:d.fgHero});
    if(d.fgCopy!==undefined)track('code_copy','engagement',{snippetId:d.fgCopy});
  });

  window.fg={track:track,conversion:conversion,visitorId:vid,sessionId:sid};
  nav(true);
})();`, serverURL)
}
