package server

// HTMLPage is the landing page. It pulls in one resource of each outcome the
// resource check distinguishes: a 200 script and stylesheet, a 404 image, a
// 404 image that answers late, a 500 script and a script behind a 302.
const HTMLPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Sitecheck Fixture</title>
    <link rel="stylesheet" href="/static/site.css">
    <script src="/static/app.js"></script>
    <script src="/static/broken.js"></script>
    <script src="/static/redirect.js"></script>
</head>
<body>
    <h1>Betting</h1>
    <p id="status">loading</p>
    <img src="/static/missing.png" alt="missing">
    <img src="/static/slow.png" alt="slow">
</body>
</html>
`

const siteCSS = `body { font-family: sans-serif; }`

const appJS = `document.addEventListener('DOMContentLoaded', function () {
    document.getElementById('status').textContent = 'ready';
});`

// DefaultPosts mirrors the shape of jsonplaceholder's /posts resource.
const DefaultPosts = `[
  {"userId": 1, "id": 1, "title": "sunt aut facere", "body": "quia et suscipit"},
  {"userId": 1, "id": 2, "title": "qui est esse", "body": "est rerum tempore vitae"},
  {"userId": 2, "id": 3, "title": "ea molestias quasi", "body": "et iusto sed quo iure"}
]`
