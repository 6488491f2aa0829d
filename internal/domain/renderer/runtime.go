package renderer

// runtimeJS is the fixed client runtime shipped with every bundle. It never
// varies per blueprint; all app-specific data reaches it through
// window.__BLUEPRINT__ and window.__STATE_KEY__ set in app.js.
//
// Responsibilities: hash routing over the server-rendered route templates,
// resolving data-bind/data-widget containers against persisted collections,
// and the two primitive actions (navigate, submit). State lives in
// localStorage and is seeded once from the blueprint's sample data.
const runtimeJS = `(function () {
  'use strict';

  var BP = window.__BLUEPRINT__ || {};
  var KEY = window.__STATE_KEY__ || 'appforge_state';
  var state = load();

  function load() {
    try {
      var raw = localStorage.getItem(KEY);
      if (raw) return JSON.parse(raw);
    } catch (e) { /* corrupt state falls back to seed */ }
    var seeded = { collections: {} };
    var sample = BP.sampleData || {};
    Object.keys(sample).forEach(function (name) {
      seeded.collections[name] = (sample[name] || []).slice();
    });
    return seeded;
  }

  function save() {
    try { localStorage.setItem(KEY, JSON.stringify(state)); } catch (e) {}
  }

  function rows(name) {
    if (!name || !state.collections[name]) return [];
    return state.collections[name];
  }

  function push(name, record) {
    if (!state.collections[name]) state.collections[name] = [];
    state.collections[name].push(record);
    save();
  }

  function defaultPath() {
    var first = (BP.routes || [])[0];
    return first ? first.path : '#/';
  }

  function currentPath() {
    return location.hash || defaultPath();
  }

  function navigate(path) {
    if (location.hash === path) { render(); } else { location.hash = path; }
  }

  function freshId() {
    return 'rec_' + Date.now().toString(36) + Math.random().toString(36).slice(2, 8);
  }

  function el(tag, cls, text) {
    var node = document.createElement(tag);
    if (cls) node.className = cls;
    if (text !== undefined) node.textContent = text;
    return node;
  }

  function render() {
    var path = currentPath();
    var tpl = document.querySelector('template[data-route="' + path + '"]');
    if (!tpl) tpl = document.querySelector('template[data-route="' + defaultPath() + '"]');
    var app = document.getElementById('app');
    app.innerHTML = '';
    if (!tpl) {
      app.appendChild(el('p', 'placeholder', 'No routes defined yet.'));
      return;
    }
    app.appendChild(tpl.content.cloneNode(true));
    document.querySelectorAll('.nav a').forEach(function (a) {
      a.classList.toggle('active', a.getAttribute('href') === path);
    });
    bind(app);
  }

  function bind(root) {
    root.querySelectorAll('[data-bind="list"]').forEach(bindList);
    root.querySelectorAll('[data-bind="table"]').forEach(bindTable);
    root.querySelectorAll('[data-bind="grid"]').forEach(bindGrid);
    root.querySelectorAll('[data-widget]').forEach(bindWidget);
    root.querySelectorAll('[data-action="navigate"]').forEach(function (btn) {
      btn.addEventListener('click', function () {
        navigate(btn.getAttribute('data-to') || defaultPath());
      });
    });
    root.querySelectorAll('form[data-collection]').forEach(bindForm);
  }

  function bindList(ul) {
    var field = ul.getAttribute('data-field');
    rows(ul.getAttribute('data-collection')).forEach(function (rec) {
      ul.appendChild(el('li', null, display(rec, field)));
    });
  }

  function bindTable(table) {
    var cols = (table.getAttribute('data-columns') || '').split(',').filter(Boolean);
    var body = table.querySelector('tbody');
    rows(table.getAttribute('data-collection')).forEach(function (rec) {
      var fields = cols.length ? cols : Object.keys(rec).sort();
      var tr = el('tr');
      fields.forEach(function (f) {
        tr.appendChild(el('td', null, rec[f] === undefined ? '' : String(rec[f])));
      });
      body.appendChild(tr);
    });
  }

  function bindGrid(grid) {
    var field = grid.getAttribute('data-field');
    rows(grid.getAttribute('data-collection')).forEach(function (rec) {
      grid.appendChild(el('div', 'cell', display(rec, field)));
    });
  }

  function bindWidget(box) {
    var kind = box.getAttribute('data-widget');
    var name = box.getAttribute('data-collection');
    var data = rows(name);
    if (kind === 'profile') {
      var rec = data[0] || {};
      Object.keys(rec).sort().forEach(function (k) {
        var line = el('div', 'row');
        line.appendChild(el('span', 'key', k));
        line.appendChild(el('span', 'val', String(rec[k])));
        box.appendChild(line);
      });
      return;
    }
    if (kind === 'todo') {
      box.appendChild(todoComposer(box, name));
    }
    if (data.length === 0 && kind !== 'todo') {
      box.appendChild(el('p', 'empty', 'Nothing here yet.'));
      return;
    }
    data.forEach(function (rec) {
      var card = el('div', 'card');
      Object.keys(rec).sort().forEach(function (k) {
        if (k === 'id') return;
        card.appendChild(el('div', k === 'title' || k === 'from' ? 'title' : 'body', String(rec[k])));
      });
      box.appendChild(card);
    });
  }

  function todoComposer(box, name) {
    var form = el('form', 'composer');
    var input = el('input');
    input.name = 'text';
    input.placeholder = 'Add an item';
    form.appendChild(input);
    form.appendChild(el('button', 'button', 'Add'));
    form.addEventListener('submit', function (ev) {
      ev.preventDefault();
      if (!input.value.trim()) return;
      push(name, { id: freshId(), text: input.value.trim(), done: false });
      render();
    });
    return form;
  }

  function bindForm(form) {
    form.addEventListener('submit', function (ev) {
      ev.preventDefault();
      var record = { id: freshId() };
      new FormData(form).forEach(function (value, key) {
        record[key] = value;
      });
      push(form.getAttribute('data-collection'), record);
      var redirect = form.getAttribute('data-redirect');
      if (redirect) { navigate(redirect); } else { render(); }
    });
  }

  function display(rec, field) {
    if (field && rec[field] !== undefined) return String(rec[field]);
    var keys = Object.keys(rec).filter(function (k) { return k !== 'id'; }).sort();
    return keys.length ? String(rec[keys[0]]) : '';
  }

  window.addEventListener('hashchange', render);
  window.addEventListener('DOMContentLoaded', render);
})();
`
