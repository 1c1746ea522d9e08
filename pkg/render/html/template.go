package html

import "text/template"

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"attr": attrEscape,
}).Parse(pageSource))

const pageSource = `{{define "page"}}{{if not .Fragment}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{attr .Title}}</title>
</head>
<body>
{{end}}<style>
.nvlviz-controls { position: absolute; z-index: 2147483647; right: 0; top: 0; padding: 1rem; }
.nvlviz-controls button { background: transparent; border: 1px solid #bbbec3; border-radius: 6px; margin-left: 4px; padding: 4px 8px; cursor: pointer; color: inherit; font: 14px sans-serif; }
.nvlviz-tooltip { width: 20%; min-width: 100px; max-width: 600px; max-height: 80%; position: absolute; z-index: 2147483647; right: 0; bottom: 0; background: inherit; display: none; border: 0.5px solid #bbbec3; padding: 0.8rem; border-radius: 8px; margin-bottom: 1rem; margin-right: 0.5rem; filter: drop-shadow(0 4px 8px rgba(26,27,29,0.12)); font-family: PublicSans, sans-serif; color: #aeaeae; font-size: 14px; overflow-wrap: anywhere; }
</style>
<div style="position: relative; width: {{.Width}};">
<div class="nvlviz-controls">
<button type="button" title="Save screenshot" onclick="{{.VarName}}.saveToFile({ filename: '{{.VarName}}.png' })">&#x2913;</button>
<button type="button" title="Zoom in" onclick="{{.VarName}}.setZoom({{.VarName}}.getScale() + 0.5)">+</button>
<button type="button" title="Zoom out" onclick="{{.VarName}}.setZoom({{.VarName}}.getScale() - 0.5)">&minus;</button>
</div>
<div id="{{.ContainerID}}" style="width: 100%; height: {{.Height}}; position: relative;">
{{if .Tooltip}}<div id="{{.TooltipID}}" class="nvlviz-tooltip"></div>
{{end}}</div>
</div>
{{if .BundleURL}}<script src="{{attr .BundleURL}}"></script>
{{else}}<script>
{{.Bundle}}
</script>
{{end}}<script>
(function () {
  var container = document.getElementById("{{.ContainerID}}");
  var tooltip = {{if .Tooltip}}document.getElementById("{{.TooltipID}}"){{else}}null{{end}};

  var bg = window.getComputedStyle(document.body, null).getPropertyValue("background-color").match(/\d+/g);
  if (bg && Number(bg[0]) * 0.2126 + Number(bg[1]) * 0.7152 + Number(bg[2]) * 0.0722 < 128) {
    container.style.color = "#e6e6e6";
  }

  function pick(el) {
    if (!el) { return null; }
    var out = { id: el.id };
    if (el.from !== undefined) { out.from = el.from; out.to = el.to; }
    return out;
  }

  function interaction(nvl, kind) {
    switch (kind) {
      case "zoom": return new NVLBase.ZoomInteraction(nvl);
      case "pan": return new NVLBase.PanInteraction(nvl);
      case "drag-node": return new NVLBase.DragNodeInteraction(nvl);
      case "hover": return new NVLBase.HoverInteraction(nvl);
    }
    throw new Error("unknown interaction " + kind);
  }
{{if .Live}}
  var nvl = null;
  var attached = {};
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(scheme + location.host + "{{.Live.SocketPath}}");

  function send(msg) { if (ws.readyState === WebSocket.OPEN) { ws.send(JSON.stringify(msg)); } }

  function callbacks(names) {
    var cb = {};
    (names || []).forEach(function (name) {
      cb[name] = function (payload) { send({ type: "callback", name: name, payload: payload === undefined ? null : payload }); };
    });
    return cb;
  }

  function run(msg) {
    switch (msg.type) {
      case "init":
        nvl = new NVLBase.NVL(container, msg.nodes || [], msg.relationships || [], msg.options, callbacks(msg.callbacks));
        window.{{.VarName}} = nvl;
        return;
      case "setNodePositions":
        nvl.setNodePositions(msg.nodes || [], !!msg.animate);
        return;
      case "attach":
        var i = interaction(nvl, msg.kind);
        if (msg.kind === "hover") {
          i.updateCallback("onHover", function (el, hits) {
            hits = hits || {};
            send({
              type: "hover",
              element: pick(el),
              hits: {
                nodes: (hits.nodes || []).map(function (h) { return pick(h.data); }),
                relationships: (hits.relationships || []).map(function (h) { return pick(h.data); })
              }
            });
          });
        }
        attached[msg.kind] = i;
        return;
      case "detach":
        if (attached[msg.kind]) { attached[msg.kind].destroy(); delete attached[msg.kind]; }
        return;
      case "overlay":
        if (!tooltip) { return; }
        if (msg.content !== undefined) { tooltip.innerHTML = msg.content; }
        if (msg.visible !== undefined) { tooltip.style.display = msg.visible ? "block" : "none"; }
        return;
      case "destroy":
        if (nvl) { nvl.destroy(); nvl = null; }
        return;
    }
    throw new Error("unknown command " + msg.type);
  }

  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    try {
      run(msg);
      if (msg.seq) { send({ type: "ack", seq: msg.seq }); }
    } catch (e) {
      if (msg.seq) { send({ type: "ack", seq: msg.seq, error: String(e) }); }
    }
  };
  ws.onopen = function () { send({ type: "ready", tooltip: tooltip !== null }); };
{{else}}
  var nodes = {{.Nodes}};
  var relationships = {{.Relationships}};
  var options = {{.Options}};
  var tips = {{.Tips}};

  var nvl = new NVLBase.NVL(container, nodes, relationships, options, {});
  window.{{.VarName}} = nvl;
  if (options.layout === "free") { nvl.setNodePositions(nodes, false); }
  ["zoom", "pan", "drag-node"].forEach(function (kind) { interaction(nvl, kind); });

  if (tooltip) {
    var shown = null;
    interaction(nvl, "hover").updateCallback("onHover", function (el) {
      var target = pick(el);
      var key = target ? (target.from !== undefined ? "r:" : "n:") + target.id : null;
      if (key === shown) { return; }
      shown = key;
      var tip = key !== null ? tips[key] : undefined;
      tooltip.innerHTML = tip || "";
      tooltip.style.display = tip ? "block" : "none";
    });
  }
{{end}}})();
</script>
{{if not .Fragment}}</body>
</html>
{{end}}{{end}}`
