package notify

// Rows are coloured the Taiwan way: red for a rise, green for a fall.
const emailHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Subject}}</title>
  <style>
    body {
      margin: 0;
      padding: 16px;
      background: #eef1f4;
      font-family: "Noto Sans TC", "PingFang TC", "Microsoft JhengHei", sans-serif;
      color: #1c2430;
    }

    .report {
      max-width: 600px;
      margin: 0 auto;
      background: #ffffff;
      border: 1px solid #d8dee6;
      border-radius: 6px;
    }

    .title {
      padding: 14px 20px;
      border-bottom: 2px solid #1c2430;
      font-size: 16px;
      font-weight: 700;
    }

    table {
      width: 100%;
      border-collapse: collapse;
      font-family: Menlo, Consolas, monospace;
      font-size: 13px;
    }

    td {
      padding: 6px 20px;
      border-bottom: 1px solid #eef1f4;
      white-space: pre;
    }

    tr.up td { color: #c62828; }
    tr.down td { color: #2e7d32; }

    .footer {
      padding: 10px 20px;
      font-size: 11px;
      color: #8a94a3;
      text-align: right;
    }
  </style>
</head>
<body>
  <div class="report">
    <div class="title">{{.Subject}}</div>
    <table>
      {{range .Rows}}
      <tr class="{{.Trend}}"><td>{{.Text}}</td></tr>
      {{end}}
    </table>
    <div class="footer">Generated by twscreener</div>
  </div>
</body>
</html>`
